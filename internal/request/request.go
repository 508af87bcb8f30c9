// Package request performs logical requests against the API: it builds the
// wire request, calls the transport once and turns non-2xx responses into
// typed errors.
package request

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/nghyane/stitch-sdk/internal/json"
)

// Header names the request layer sets itself.
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRequestID     = "X-Request-Id"
)

// StitchRequest is a logical request relative to the client's base URL.
type StitchRequest struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
	// Timeout overrides the client's default when positive.
	Timeout time.Duration
}

// DocRequest is a request whose body is a structured document serialized as
// JSON immediately before sending.
type DocRequest struct {
	StitchRequest
	Document any
}

// Response is a completed exchange.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Success reports whether the status is 2xx.
func (r *Response) Success() bool {
	return IsSuccess(r.StatusCode)
}

// DecodeInto unmarshals a JSON body into out. An empty body leaves out as is.
func (r *Response) DecodeInto(out any) error {
	if len(r.Body) == 0 || out == nil {
		return nil
	}
	return json.Unmarshal(r.Body, out)
}

// Document decodes the body as a JSON object.
func (r *Response) Document() (json.Document, error) {
	return json.Decode(r.Body)
}

func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// WithHeader returns a copy of r with key set to value. The receiver's
// header map is never modified.
func (r StitchRequest) WithHeader(key, value string) StitchRequest {
	r.Headers = mergeHeaders(r.Headers, map[string]string{key: value})
	return r
}

// mergeHeaders copies base and applies overrides on top, canonicalizing
// keys so a later write of the same header always wins.
func mergeHeaders(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	applyHeaders(out, base)
	applyHeaders(out, overrides)
	return out
}

// applyHeaders copies src into dst under canonical keys. When src spells one
// header several ways, the canonical spelling wins; otherwise the spelling
// that sorts last does.
func applyHeaders(dst, src map[string]string) {
	keys := slices.Sorted(maps.Keys(src))
	for _, canonicalPass := range []bool{false, true} {
		for _, k := range keys {
			ck := http.CanonicalHeaderKey(k)
			if (ck == k) == canonicalPass {
				dst[ck] = src[k]
			}
		}
	}
}

// AuthRequest is a request sent with session proof attached.
type AuthRequest struct {
	DocRequest
	// UseRefreshToken attaches the refresh token instead of the access
	// token. Such requests never trigger a refresh.
	UseRefreshToken bool
}

// AuthRequester sends requests on behalf of the current session.
type AuthRequester interface {
	DoAuthRequest(ctx context.Context, req AuthRequest) (*Response, error)
}
