package request

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/nghyane/stitch-sdk/internal/json"
	log "github.com/nghyane/stitch-sdk/internal/logging"
	"github.com/nghyane/stitch-sdk/internal/stitcherr"
	"github.com/nghyane/stitch-sdk/internal/transport"
)

// Requester is the request capability shared by provider clients and the
// authenticated client.
type Requester interface {
	DoRequest(ctx context.Context, req StitchRequest) (*Response, error)
	DoJSONRequest(ctx context.Context, req DocRequest) (*Response, error)
}

// DefaultTimeout applies to requests that set no timeout of their own.
const DefaultTimeout = 60 * time.Second

// Client is the unauthenticated request client.
type Client struct {
	baseURL        string
	transport      transport.Transport
	defaultTimeout atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithDefaultTimeout sets the timeout for requests that carry none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout.Store(int64(d))
		}
	}
}

// NewClient builds a client sending every request to baseURL+path.
func NewClient(baseURL string, t transport.Transport, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: t,
	}
	c.defaultTimeout.Store(int64(DefaultTimeout))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// SetDefaultTimeout changes the default timeout of subsequent requests. It
// is safe to call while requests are in flight.
func (c *Client) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		c.defaultTimeout.Store(int64(d))
	}
}

// DefaultTimeout returns the timeout applied to requests that carry none.
func (c *Client) DefaultTimeout() time.Duration {
	return time.Duration(c.defaultTimeout.Load())
}

// DoRequest sends req exactly once. Transport failures come back as
// *stitcherr.TransportError and non-2xx responses as *stitcherr.RequestError.
func (c *Client) DoRequest(ctx context.Context, req StitchRequest) (*Response, error) {
	return c.do(ctx, req, nil)
}

// DoJSONRequest serializes req.Document and sends it with a JSON content
// type. A request carrying both a body and a document fails before any
// network activity.
func (c *Client) DoJSONRequest(ctx context.Context, req DocRequest) (*Response, error) {
	if req.Body != nil && req.Document != nil {
		return nil, stitcherr.ErrBodyAndDocument
	}
	body := req.Body
	if req.Document != nil {
		encoded, err := json.Encode(req.Document)
		if err != nil {
			return nil, fmt.Errorf("stitch: encode document: %w", err)
		}
		body = encoded
	}
	stitchReq := req.StitchRequest
	stitchReq.Body = body
	return c.do(ctx, stitchReq, map[string]string{HeaderContentType: json.ContentType})
}

// DoJSONRequestInto is DoJSONRequest followed by decoding the response
// body into out.
func (c *Client) DoJSONRequestInto(ctx context.Context, req DocRequest, out any) error {
	resp, err := c.DoJSONRequest(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.DecodeInto(out); err != nil {
		return fmt.Errorf("stitch: decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req StitchRequest, derived map[string]string) (*Response, error) {
	headers := mergeHeaders(req.Headers, derived)
	requestID := headers[HeaderRequestID]
	if requestID == "" {
		requestID = uuid.NewString()
		headers[HeaderRequestID] = requestID
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.DefaultTimeout()
	}
	wireReq := &transport.Request{
		Method:  req.Method,
		URL:     c.baseURL + req.Path,
		Headers: headers,
		Body:    req.Body,
		Timeout: timeout,
	}

	entry := log.WithFields(log.Fields{
		"request_id": requestID,
		"method":     wireReq.Method,
		"url":        log.MaskURL(wireReq.URL),
	})
	entry.WithField("headers", log.MaskHeaders(headers)).Debug("sending request")

	start := time.Now()
	wireResp, err := c.transport.RoundTrip(ctx, wireReq)
	if err != nil {
		entry.WithError(err).Debug("transport failed")
		return nil, &stitcherr.TransportError{
			Method: wireReq.Method,
			URL:    log.MaskURL(wireReq.URL),
			Cause:  err,
		}
	}

	resp := &Response{
		StatusCode: wireResp.StatusCode,
		Headers:    wireResp.Headers,
		Body:       wireResp.Body,
	}
	entry.WithField("status", resp.StatusCode).
		WithField("elapsed", time.Since(start).Round(time.Millisecond)).
		Debug("received response")

	if !resp.Success() {
		return nil, decodeError(resp)
	}
	return resp, nil
}

// decodeError reads the {"error": ..., "error_code": ...} envelope. Anything
// else yields a generic error with the raw status and an Unknown code.
func decodeError(resp *Response) *stitcherr.RequestError {
	if len(resp.Body) == 0 || !gjson.ValidBytes(resp.Body) {
		return stitcherr.NewRequestError(resp.StatusCode, stitcherr.CodeUnknown, "")
	}
	root := gjson.ParseBytes(resp.Body)
	if !root.IsObject() {
		return stitcherr.NewRequestError(resp.StatusCode, stitcherr.CodeUnknown, "")
	}
	msg := root.Get("error")
	if !msg.Exists() {
		return stitcherr.NewRequestError(resp.StatusCode, stitcherr.CodeUnknown, "")
	}
	code := root.Get("error_code").String()
	return stitcherr.NewRequestError(resp.StatusCode, stitcherr.ErrorCode(code), msg.String())
}
