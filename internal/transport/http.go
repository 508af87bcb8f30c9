package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Config tunes the pooled HTTP transport.
type Config struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ResponseHeaderTimeout time.Duration
	DialTimeout           time.Duration
	KeepAlive             time.Duration
	// ProxyURL routes every request through an HTTP(S) proxy when set.
	ProxyURL string
	// UserAgent is sent unless the request sets its own.
	UserAgent string
	// DisableCompression stops advertising Accept-Encoding. Encoded
	// responses are still decoded.
	DisableCompression bool
}

// DefaultConfig returns the pool sizes and timeouts used by NewHTTP.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		DialTimeout:           30 * time.Second,
		KeepAlive:             30 * time.Second,
		UserAgent:             "stitch-sdk-go",
	}
}

// HTTP is the net/http backed Transport.
type HTTP struct {
	client    *http.Client
	userAgent string
	accept    string
}

// NewHTTP builds an HTTP transport from cfg.
func NewHTTP(cfg Config) (*HTTP, error) {
	rt, err := baseTransport(cfg)
	if err != nil {
		return nil, err
	}
	h := &HTTP{client: &http.Client{Transport: rt}, userAgent: cfg.UserAgent, accept: acceptEncoding}
	if cfg.DisableCompression {
		h.accept = ""
	}
	return h, nil
}

// NewHTTPWithClient wraps an existing client, as used by tests against
// httptest servers.
func NewHTTPWithClient(client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client, accept: acceptEncoding}
}

func configureHTTP2(t *http.Transport) {
	h2Transport, err := http2.ConfigureTransports(t)
	if err != nil {
		return
	}
	h2Transport.ReadIdleTimeout = 30 * time.Second
	h2Transport.PingTimeout = 15 * time.Second
	h2Transport.StrictMaxConcurrentStreams = true
}

func baseTransport(cfg Config) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}
	t := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
		// Decoding is done by RoundTrip for every advertised coding.
		DisableCompression: true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	if err := applyProxy(t, cfg.ProxyURL, dialer); err != nil {
		return nil, err
	}
	configureHTTP2(t)
	return t, nil
}

// RoundTrip sends req and reads the full, decoded response body. The
// returned headers no longer describe a content encoding.
func (h *HTTP) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if h.accept != "" && httpReq.Header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", h.accept)
	}
	if h.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", h.userAgent)
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(httpResp.Body)
	_ = httpResp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("transport: read response body: %w", err)
	}

	headers := httpResp.Header
	if encoding := headers.Get("Content-Encoding"); encoding != "" {
		if raw, err = decodeBody(raw, encoding); err != nil {
			return nil, err
		}
		headers = stripEncoding(headers)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    headers,
		Body:       raw,
	}, nil
}
