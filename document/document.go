// Package document defines the stored record type and the value rules shared by
// the query engine and the collection: equality, ordering, truthiness and copying.
package document

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"time"
)

// IDField is the key holding a document's collection-assigned identifier.
const IDField = "_id"

// Document is a single schema-less record. Nested objects are plain
// map[string]any values and arrays are []any, as produced by JSON decoding.
type Document map[string]any

// From converts v to a Document. It reports false when v is not object shaped.
func From(v any) (Document, bool) {
	switch d := v.(type) {
	case Document:
		return d, d != nil
	case map[string]any:
		return Document(d), d != nil
	}
	return nil, false
}

// ID returns the document's _id when it holds a positive integer.
func (d Document) ID() (int64, bool) {
	v, ok := d[IDField]
	if !ok {
		return 0, false
	}
	return AsID(v)
}

// AsID interprets v as a document id. Only positive integral numbers qualify.
func AsID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, n > 0
	case int:
		return int64(n), n > 0
	case int32:
		return int64(n), n > 0
	case uint32:
		return int64(n), n > 0
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), n > 0
	}
	f, ok := ToFloat(v)
	if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Clone returns a deep copy of d. Scalars, including time.Time, are values
// and are copied by assignment.
func Clone(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep copies nested objects and arrays.
func CloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Clone(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = CloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = CloneValue(vv)
		}
		return out
	}
	return v
}

// ToFloat reports whether v is a number and returns it as float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// IsScalar reports whether v is a leaf value a plain equality clause can target.
func IsScalar(v any) bool {
	switch v.(type) {
	case bool, string, time.Time, *regexp.Regexp:
		return true
	}
	_, ok := ToFloat(v)
	return ok
}

// Equal is strict equality: both sides must be of the same kind (all numeric
// Go types count as one kind) and hold the same value. Objects and arrays
// compare element by element.
func Equal(a, b any) bool {
	if _, ok := ToFloat(a); ok {
		c, ok := compareNumbers(a, b)
		return ok && c == 0
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case *regexp.Regexp:
		y, ok := b.(*regexp.Regexp)
		return ok && x.String() == y.String()
	case Document:
		return equalObject(x, b)
	case map[string]any:
		return equalObject(x, b)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func equalObject(x map[string]any, b any) bool {
	var y map[string]any
	switch t := b.(type) {
	case Document:
		y = t
	case map[string]any:
		y = t
	default:
		return false
	}
	if len(x) != len(y) {
		return false
	}
	for k, xv := range x {
		yv, ok := y[k]
		if !ok || !Equal(xv, yv) {
			return false
		}
	}
	return true
}

// Compare orders two values of the same kind: numbers numerically, strings
// by byte order, dates chronologically, booleans false before true. It
// reports false when the values are not mutually comparable.
func Compare(a, b any) (int, bool) {
	if _, ok := ToFloat(a); ok {
		return compareNumbers(a, b)
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return cmp3(x < y, x > y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		return cmp3(!x && y, x && !y), true
	}
	return 0, false
}

// compareNumbers compares two numbers of any Go numeric type. Integers are
// compared exactly; anything involving a float goes through float64.
func compareNumbers(a, b any) (int, bool) {
	if ia, ok := toInt(a); ok {
		if ib, ok := toInt(b); ok {
			return cmp.Compare(ia, ib), true
		}
	}
	if ua, ok := a.(uint64); ok {
		if ub, ok := b.(uint64); ok {
			return cmp.Compare(ua, ub), true
		}
	}
	fa, okA := ToFloat(a)
	fb, okB := ToFloat(b)
	if !okA || !okB || math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, false
	}
	return cmp3(fa < fb, fa > fb), true
}

// toInt returns integer kinds that fit in an int64.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// Rank gives each kind of value a fixed position so that values of
// different kinds still sort deterministically.
func Rank(v any) int {
	if _, ok := ToFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 2
	case Document, map[string]any:
		return 3
	case []any:
		return 4
	case bool:
		return 5
	case time.Time:
		return 6
	}
	return 7
}

// Truthy applies loose truthiness: nil, false, zero, NaN and the empty
// string are falsy, everything else is truthy.
func Truthy(v any) bool {
	if f, ok := ToFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	return true
}

// String renders v the way a regular expression clause sees it.
func String(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case nil:
		return "null"
	}
	if f, ok := ToFloat(v); ok {
		return fmt.Sprint(f)
	}
	return fmt.Sprint(v)
}

// TimestampLayout is the textual form returned by Now.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Now returns the current instant in UTC, millisecond precision.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}
