// Package json is the serialization capability used by the request layer.
// It wraps bytedance/sonic behind the encoding/json API and adds the
// document helpers used for request and response bodies.
package json

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/decoder"
)

// api keeps map keys sorted so encoded documents are stable across calls.
var api = sonic.Config{
	SortMapKeys:      true,
	ValidateString:   true,
	CopyString:       true,
	EscapeHTML:       false,
	UseNumber:        false,
	NoNullSliceOrMap: false,
}.Froze()

// ContentType is the media type attached to document-bearing requests.
const ContentType = "application/json"

// ErrNotDocument is returned when a body decodes to something other than an object.
var ErrNotDocument = errors.New("json: body is not a document")

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Document is an opaque key/value payload.
type Document = map[string]any

type (
	RawMessage         = stdjson.RawMessage
	Number             = stdjson.Number
	Marshaler          = stdjson.Marshaler
	Unmarshaler        = stdjson.Unmarshaler
	SyntaxError        = stdjson.SyntaxError
	UnmarshalTypeError = stdjson.UnmarshalTypeError
)

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent is Marshal with indentation, used for human-readable output.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return api.Valid(data)
}

// Encode serializes a document to UTF-8 bytes. A nil document encodes as {}.
func Encode(doc any) ([]byte, error) {
	if doc == nil {
		return []byte("{}"), nil
	}
	return api.Marshal(doc)
}

// Decode parses bytes into a Document. Numbers are kept as json.Number so a
// decode/encode cycle does not lose integer precision.
func Decode(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}
	dec := decoder.NewStreamDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	doc, ok := out.(map[string]any)
	if !ok {
		return nil, ErrNotDocument
	}
	return doc, nil
}

// NewDecoder returns a stream decoder reading from r.
func NewDecoder(r io.Reader) *decoder.StreamDecoder {
	return decoder.NewStreamDecoder(r)
}

// Compact appends to dst the JSON-encoded src with insignificant space elided.
func Compact(dst *[]byte, src []byte) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()
	if err := stdjson.Compact(buf, src); err != nil {
		return err
	}
	*dst = append(*dst, buf.Bytes()...)
	return nil
}
