package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// codings lists the content codings the transport understands, in the order
// they are advertised in Accept-Encoding.
var codings = []struct {
	name   string
	decode func([]byte) ([]byte, error)
}{
	{"gzip", decodeGzip},
	{"deflate", decodeDeflate},
	{"br", decodeBrotli},
	{"zstd", decodeZstd},
}

var acceptEncoding = func() string {
	names := make([]string, len(codings))
	for i, c := range codings {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}()

// UnsupportedEncodingError is returned for a response compressed with a
// coding the transport did not advertise.
type UnsupportedEncodingError struct {
	Encoding string
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("transport: unsupported content encoding %q", e.Encoding)
}

// decodeBody undoes the codings named in contentEncoding. Codings are listed
// in the order they were applied, so they are removed last to first.
func decodeBody(body []byte, contentEncoding string) ([]byte, error) {
	applied := strings.Split(contentEncoding, ",")
	for i := len(applied) - 1; i >= 0; i-- {
		name := strings.ToLower(strings.TrimSpace(applied[i]))
		if name == "" || name == "identity" {
			continue
		}
		decode := lookupCoding(name)
		if decode == nil {
			return nil, &UnsupportedEncodingError{Encoding: name}
		}
		var err error
		if body, err = decode(body); err != nil {
			return nil, fmt.Errorf("transport: decode %s body: %w", name, err)
		}
	}
	return body, nil
}

func lookupCoding(name string) func([]byte) ([]byte, error) {
	for _, c := range codings {
		if c.name == name {
			return c.decode
		}
	}
	return nil
}

// stripEncoding returns h without the headers describing the encoded body.
func stripEncoding(h http.Header) http.Header {
	out := h.Clone()
	out.Del("Content-Encoding")
	out.Del("Content-Length")
	return out
}

func decodeGzip(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// decodeDeflate accepts zlib-wrapped data as the coding requires and falls
// back to raw deflate, which some servers send instead.
func decodeDeflate(b []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(b)); err == nil {
		defer r.Close()
		return io.ReadAll(r)
	} else if !errors.Is(err, zlib.ErrHeader) {
		return nil, err
	}
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()
	return io.ReadAll(r)
}

func decodeBrotli(b []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(b)))
}

// zstdDecoder is shared; DecodeAll is safe for concurrent use.
var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

func decodeZstd(b []byte) ([]byte, error) {
	d, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	return d.DecodeAll(b, nil)
}
