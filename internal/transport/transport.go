// Package transport is the round-trip capability the request layer consumes.
// The core treats it as opaque: one request in, one response or one error out.
package transport

import (
	"context"
	"net/http"
	"time"
)

// Request is a fully built wire request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	// Timeout bounds the whole exchange when positive.
	Timeout time.Duration
}

// Response is a fully read wire response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transport performs exactly one request/response exchange. It returns an
// error only when no response was obtained.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a plain function to Transport.
type Func func(ctx context.Context, req *Request) (*Response, error)

func (f Func) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
