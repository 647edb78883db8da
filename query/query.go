// Package query evaluates filter objects against document sequences.
//
// A filter is an ordered list of clauses, each a key and a value. Clauses are
// classified (see Classify) and applied one after another, each narrowing the
// result of the previous one. Clause shapes the engine does not implement are
// passed through untouched unless the Engine runs in strict mode.
package query

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/stevemurr/docstore/document"
)

// Field is one key/value pair of a query object.
type Field struct {
	Key   string
	Value any
}

// Query is an object whose key order is significant.
type Query []Field

// ErrNotObject is returned by Parse when the input is valid JSON but not an object.
var ErrNotObject = errors.New("query is not an object")

// Get returns the value of the first field named key.
func (q Query) Get(key string) (any, bool) {
	for _, f := range q {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Map flattens q into a plain object, dropping key order. Nested queries
// become nested objects.
func (q Query) Map() map[string]any {
	out := make(map[string]any, len(q))
	for _, f := range q {
		out[f.Key] = plain(f.Value)
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case Query:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

// From converts v into a Query. Plain maps have no key order, so their keys
// are taken in sorted order. A nil v is the empty query. From reports false
// when v is not object shaped.
func From(v any) (Query, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case Query:
		return normalizeQuery(t), true
	case document.Document:
		return fromMap(t), true
	case map[string]any:
		return fromMap(t), true
	}
	return nil, false
}

// MustFrom is like From but panics on non-object input. Meant for literals.
func MustFrom(v any) Query {
	q, ok := From(v)
	if !ok {
		panic(fmt.Sprintf("query: %T is not an object", v))
	}
	return q
}

func fromMap(m map[string]any) Query {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := make(Query, 0, len(keys))
	for _, k := range keys {
		q = append(q, Field{Key: k, Value: normalize(m[k])})
	}
	return q
}

func normalizeQuery(q Query) Query {
	out := make(Query, len(q))
	for i, f := range q {
		out[i] = Field{Key: f.Key, Value: normalize(f.Value)}
	}
	return out
}

// normalize turns every object below a query into a Query and every
// sequence into []any, so classification only deals with those two shapes.
func normalize(v any) any {
	switch t := v.(type) {
	case Query:
		return normalizeQuery(t)
	case document.Document:
		return fromMap(t)
	case map[string]any:
		return fromMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []Query:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeQuery(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromMap(e)
		}
		return out
	case []document.Document:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromMap(e)
		}
		return out
	}
	return v
}

// Parse decodes a JSON query keeping the key order of every object.
//
// Two object shapes are decoded into query-side values:
//
//	{"$regex": "^ab", "$options": "i"}  -> *regexp.Regexp
//	{"$date": "2024-01-02T15:04:05Z"}   -> time.Time
func Parse(data []byte) (Query, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("query: trailing data after object")
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Query:
		return t, nil
	}
	return nil, ErrNotObject
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		q := Query{}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("query: object key is %T", kt)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			q = append(q, Field{Key: key, Value: v})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return special(q)
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("query: unexpected delimiter %v", delim)
}

func special(q Query) (any, error) {
	switch {
	case len(q) == 1 && q[0].Key == "$date":
		s, ok := q[0].Value.(string)
		if !ok {
			return q, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("query: bad $date: %w", err)
		}
		return t, nil
	case len(q) >= 1 && len(q) <= 2 && q[0].Key == "$regex":
		pattern, ok := q[0].Value.(string)
		if !ok {
			return q, nil
		}
		if len(q) == 2 {
			if q[1].Key != "$options" {
				return q, nil
			}
			opts, _ := q[1].Value.(string)
			if opts != "" {
				pattern = "(?" + opts + ")" + pattern
			}
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("query: bad $regex: %w", err)
		}
		return re, nil
	}
	return q, nil
}
