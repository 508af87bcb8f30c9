package request

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nghyane/stitch-sdk/internal/stitcherr"
	"github.com/nghyane/stitch-sdk/internal/transport"
)

type recordingTransport struct {
	mu    sync.Mutex
	calls []*transport.Request
	resp  *transport.Response
	err   error
}

func (r *recordingTransport) RoundTrip(_ context.Context, req *transport.Request) (*transport.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if r.err != nil {
		return nil, r.err
	}
	if r.resp != nil {
		return r.resp, nil
	}
	return &transport.Response{StatusCode: http.StatusOK}, nil
}

func newTestClient(rt *recordingTransport) *Client {
	return NewClient("http://stitch.test/", rt)
}

func TestDoJSONRequestRejectsBodyAndDocument(t *testing.T) {
	rt := &recordingTransport{}
	c := newTestClient(rt)

	_, err := c.DoJSONRequest(context.Background(), DocRequest{
		StitchRequest: StitchRequest{Method: http.MethodPost, Path: "/x", Body: []byte("raw")},
		Document:      map[string]any{"a": 1},
	})
	require.ErrorIs(t, err, stitcherr.ErrBodyAndDocument)
	assert.Empty(t, rt.calls, "transport must not be invoked")
}

func TestDoJSONRequestCopiesHeaders(t *testing.T) {
	rt := &recordingTransport{}
	c := newTestClient(rt)

	callerHeaders := map[string]string{"x-custom": "1", "content-type": "text/plain"}
	doc := map[string]any{"username": "a@b.com", "password": "pw"}

	_, err := c.DoJSONRequest(context.Background(), DocRequest{
		StitchRequest: StitchRequest{Method: http.MethodPost, Path: "/login", Headers: callerHeaders},
		Document:      doc,
	})
	require.NoError(t, err)
	require.Len(t, rt.calls, 1)

	sent := rt.calls[0]
	assert.Equal(t, "http://stitch.test/login", sent.URL)
	assert.Equal(t, "application/json", sent.Headers["Content-Type"])
	assert.Equal(t, "1", sent.Headers["X-Custom"])
	assert.NotEmpty(t, sent.Headers["X-Request-Id"])
	assert.JSONEq(t, `{"password":"pw","username":"a@b.com"}`, string(sent.Body))

	assert.Equal(t, map[string]string{"x-custom": "1", "content-type": "text/plain"}, callerHeaders)
	assert.Equal(t, map[string]any{"username": "a@b.com", "password": "pw"}, doc)
}

func TestDoRequestKeepsCallerRequestID(t *testing.T) {
	rt := &recordingTransport{}
	c := newTestClient(rt)

	_, err := c.DoRequest(context.Background(), StitchRequest{
		Method:  http.MethodGet,
		Headers: map[string]string{"X-Request-Id": "fixed"},
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed", rt.calls[0].Headers["X-Request-Id"])
	assert.Equal(t, "http://stitch.test", rt.calls[0].URL, "empty path targets the base URL")
	assert.Equal(t, DefaultTimeout, rt.calls[0].Timeout)
}

func TestDoRequestWrapsTransportError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	rt := &recordingTransport{err: cause}
	c := newTestClient(rt)

	_, err := c.DoRequest(context.Background(), StitchRequest{Method: http.MethodGet, Path: "/p"})
	var tErr *stitcherr.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.MethodGet, tErr.Method)
	assert.Len(t, rt.calls, 1)
}

func TestDoRequestDecodesErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode stitcherr.ErrorCode
		wantMsg  string
		wantAuth bool
	}{
		{
			name:     "invalid session",
			status:   http.StatusUnauthorized,
			body:     `{"error":"invalid session","error_code":"InvalidSession"}`,
			wantCode: stitcherr.CodeInvalidSession,
			wantMsg:  "invalid session",
			wantAuth: true,
		},
		{
			name:     "missing code",
			status:   http.StatusBadRequest,
			body:     `{"error":"bad thing"}`,
			wantCode: stitcherr.CodeUnknown,
			wantMsg:  "bad thing",
		},
		{
			name:     "html body",
			status:   http.StatusBadGateway,
			body:     `<html>gateway</html>`,
			wantCode: stitcherr.CodeUnknown,
		},
		{
			name:     "json without envelope",
			status:   http.StatusInternalServerError,
			body:     `{"message":"oops"}`,
			wantCode: stitcherr.CodeUnknown,
		},
		{
			name:     "empty body",
			status:   http.StatusNotFound,
			wantCode: stitcherr.CodeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &recordingTransport{resp: &transport.Response{StatusCode: tt.status, Body: []byte(tt.body)}}
			c := newTestClient(rt)

			_, err := c.DoRequest(context.Background(), StitchRequest{Method: http.MethodGet, Path: "/p"})
			var reqErr *stitcherr.RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, tt.status, reqErr.HTTPStatus)
			assert.Equal(t, tt.wantCode, reqErr.Code)
			assert.Equal(t, tt.wantMsg, reqErr.Message)
			assert.Equal(t, tt.wantAuth, stitcherr.IsAuthRejected(err))
		})
	}
}

func TestDoJSONRequestInto(t *testing.T) {
	rt := &recordingTransport{resp: &transport.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"access_token":"T1","refresh_token":"R1"}`),
	}}
	c := NewClient("http://stitch.test", rt, WithDefaultTimeout(5*time.Second))

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	err := c.DoJSONRequestInto(context.Background(), DocRequest{
		StitchRequest: StitchRequest{Method: http.MethodPost, Path: "/login"},
		Document:      map[string]any{},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "T1", out.AccessToken)
	assert.Equal(t, "R1", out.RefreshToken)
	assert.Equal(t, 5*time.Second, rt.calls[0].Timeout)
}

func TestWithHeaderDoesNotMutate(t *testing.T) {
	orig := StitchRequest{Headers: map[string]string{"A": "1"}}
	next := orig.WithHeader("Authorization", "Bearer x")

	assert.Equal(t, map[string]string{"A": "1"}, orig.Headers)
	assert.Equal(t, "Bearer x", next.Headers["Authorization"])
	assert.Equal(t, "1", next.Headers["A"])
}

func TestMergeHeadersWithCaseVariants(t *testing.T) {
	base := map[string]string{
		"content-type": "text/plain",
		"Content-Type": "application/json",
		"CONTENT-TYPE": "text/html",
		"x-trace":      "a",
		"X-TRACE":      "b",
	}
	for i := 0; i < 20; i++ {
		got := mergeHeaders(base, map[string]string{"authorization": "Bearer x"})
		assert.Equal(t, map[string]string{
			"Content-Type":  "application/json",
			"X-Trace":       "a",
			"Authorization": "Bearer x",
		}, got)
	}

	got := mergeHeaders(base, map[string]string{"content-type": "application/ejson"})
	assert.Equal(t, "application/ejson", got["Content-Type"], "overrides win over base")
}
