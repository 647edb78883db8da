package store

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/stevemurr/docstore/document"
)

const (
	// dateKey wraps time values so they survive a JSON round trip.
	dateKey = "$date"
	// literalKey wraps user objects that would otherwise read back as a
	// wrapper themselves.
	literalKey = "$literal"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Encode serializes docs as a single JSON array.
func Encode(docs []document.Document) ([]byte, error) {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = encodeValue(map[string]any(d))
	}
	return json.Marshal(out)
}

// Decode parses a snapshot produced by Encode, compressed or not.
func Decode(data []byte) ([]document.Document, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		raw, err := decompress(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		data = raw
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	docs := make([]document.Document, 0, len(raw))
	for _, m := range raw {
		if m == nil {
			continue
		}
		docs = append(docs, decodeDocument(m))
	}
	return docs, nil
}

func encodeDocument(d document.Document) ([]byte, error) {
	return json.Marshal(encodeValue(map[string]any(d)))
}

func decodeDocument(m map[string]any) document.Document {
	d := document.Document(decodeValue(m).(map[string]any))
	if id, ok := document.AsID(d[document.IDField]); ok {
		d[document.IDField] = id
	}
	return d
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return map[string]any{dateKey: t.UTC().Format(time.RFC3339Nano)}
	case document.Document:
		return encodeValue(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = encodeValue(vv)
		}
		if isWrapper(out) {
			return map[string]any{literalKey: out}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = encodeValue(vv)
		}
		return out
	}
	return v
}

func decodeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if s, ok := t[dateKey].(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return ts
				}
			}
			if inner, ok := t[literalKey].(map[string]any); ok {
				t = inner
			}
		}
		for k, vv := range t {
			t[k] = decodeValue(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = decodeValue(vv)
		}
		return t
	}
	return v
}

func isWrapper(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	_, date := m[dateKey]
	_, literal := m[literalKey]
	return date || literal
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
