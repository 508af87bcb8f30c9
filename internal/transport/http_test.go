package transport

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{"access_token":"T1","refresh_token":"R1"}`

func encodeBody(t *testing.T, encoding string) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(payload))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "br":
		w := brotli.NewWriter(&buf)
		_, err := w.Write([]byte(payload))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		buf.Write(enc.EncodeAll([]byte(payload), nil))
		require.NoError(t, enc.Close())
	case "deflate":
		w := zlib.NewWriter(&buf)
		_, err := w.Write([]byte(payload))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		buf.WriteString(payload)
	}
	return buf.Bytes()
}

func TestHTTPRoundTripDecompresses(t *testing.T) {
	for _, encoding := range []string{"", "identity", "gzip", "deflate", "br", "zstd"} {
		t.Run("encoding="+encoding, func(t *testing.T) {
			body := encodeBody(t, encoding)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if encoding != "" {
					w.Header().Set("Content-Encoding", encoding)
				}
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
			}))
			defer srv.Close()

			tr := NewHTTPWithClient(srv.Client())
			resp, err := tr.RoundTrip(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.JSONEq(t, payload, string(resp.Body))
			assert.Empty(t, resp.Headers.Get("Content-Encoding"))
		})
	}
}

func TestHTTPRoundTripSendsHeadersAndBody(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tr := NewHTTPWithClient(srv.Client())
	tr.userAgent = "stitch-test"
	resp, err := tr.RoundTrip(context.Background(), &Request{
		Method:  http.MethodPost,
		URL:     srv.URL + "/login",
		Headers: map[string]string{"Content-Type": "application/json", "X-Request-Id": "abc"},
		Body:    []byte(`{"a":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"a":1}`, string(gotBody))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "abc", gotHeader.Get("X-Request-Id"))
	assert.Equal(t, "stitch-test", gotHeader.Get("User-Agent"))
	assert.Equal(t, acceptEncoding, gotHeader.Get("Accept-Encoding"))
}

func TestHTTPRoundTripTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := NewHTTPWithClient(srv.Client())
	_, err := tr.RoundTrip(context.Background(), &Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Timeout: 20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewHTTPRejectsBadProxy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProxyURL = "://bad"
	_, err := NewHTTP(cfg)
	require.Error(t, err)

	cfg.ProxyURL = ""
	tr, err := NewHTTP(cfg)
	require.NoError(t, err)
	assert.Equal(t, "stitch-sdk-go", tr.userAgent)
}

func TestFuncAdapter(t *testing.T) {
	var calls int
	var tr Transport = Func(func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return &Response{StatusCode: http.StatusNoContent}, nil
	})
	resp, err := tr.RoundTrip(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestDecodeBody(t *testing.T) {
	gz := encodeBody(t, "gzip")
	var twice bytes.Buffer
	w := brotli.NewWriter(&twice)
	_, err := w.Write(gz)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := decodeBody(twice.Bytes(), "gzip, br")
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(got))

	var raw bytes.Buffer
	fw, err := flate.NewWriter(&raw, flate.BestSpeed)
	require.NoError(t, err)
	_, err = fw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	got, err = decodeBody(raw.Bytes(), "deflate")
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(got), "raw deflate is accepted")

	_, err = decodeBody([]byte(payload), "compress")
	var unsupported *UnsupportedEncodingError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "compress", unsupported.Encoding)

	_, err = decodeBody([]byte(payload), "gzip")
	require.Error(t, err)
}

func TestHTTPRoundTripCorruptEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	tr := NewHTTPWithClient(srv.Client())
	resp, err := tr.RoundTrip(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "decode gzip body")
}

func TestDisableCompression(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Accept-Encoding")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.DisableCompression = true
	tr, err := NewHTTP(cfg)
	require.NoError(t, err)
	_, err = tr.RoundTrip(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Empty(t, got)
}
