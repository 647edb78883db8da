package collection

import (
	"slices"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/stevemurr/docstore/document"
)

// Sort directions.
const (
	Ascending  = 1
	Descending = -1
)

// collators holds root-locale collators for Sort. A Collator keeps scratch
// buffers and must not be shared between goroutines.
var collators = sync.Pool{
	New: func() any { return collate.New(language.Und) },
}

// Cursor holds detached copies of matched documents. Sort, Limit and Skip
// rearrange the copies in place and return the cursor for chaining; none
// of them touch the collection the documents came from.
type Cursor struct {
	docs []document.Document
}

// NewCursor deep copies docs into a new cursor.
func NewCursor(docs []document.Document) *Cursor {
	out := make([]document.Document, len(docs))
	for i, d := range docs {
		out[i] = document.Clone(d)
	}
	return &Cursor{docs: out}
}

// Sort orders the documents by field, ascending for a positive dir and
// descending for a negative one. Documents without the field go last when
// ascending and first when descending. Strings compare with root-locale
// collation. Ties keep ascending _id order. A zero dir is a no-op.
func (c *Cursor) Sort(field string, dir int) *Cursor {
	if dir == 0 || len(c.docs) < 2 {
		return c
	}
	if dir > 0 {
		dir = Ascending
	} else {
		dir = Descending
	}
	col := collators.Get().(*collate.Collator)
	defer collators.Put(col)
	slices.SortStableFunc(c.docs, func(a, b document.Document) int {
		if r := dir * compareField(col, a, b, field); r != 0 {
			return r
		}
		ia, _ := a.ID()
		ib, _ := b.ID()
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	})
	return c
}

// compareField orders by field value, treating a missing field as larger
// than any value.
func compareField(col *collate.Collator, a, b document.Document, field string) int {
	va, okA := a[field]
	vb, okB := b[field]
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	if sa, ok := va.(string); ok {
		if sb, ok := vb.(string); ok {
			return col.CompareString(sa, sb)
		}
	}
	if r, ok := document.Compare(va, vb); ok {
		return r
	}
	ra, rb := document.Rank(va), document.Rank(vb)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

// Limit keeps the first n documents. A negative n is a no-op.
func (c *Cursor) Limit(n int) *Cursor {
	if n < 0 {
		return c
	}
	if n < len(c.docs) {
		c.docs = c.docs[:n]
	}
	return c
}

// Skip drops the first n documents. A negative n is a no-op.
func (c *Cursor) Skip(n int) *Cursor {
	if n < 0 {
		return c
	}
	if n > len(c.docs) {
		n = len(c.docs)
	}
	c.docs = c.docs[n:]
	return c
}

// Count returns the number of documents currently held.
func (c *Cursor) Count() int { return len(c.docs) }

// All returns the documents in their current order.
func (c *Cursor) All() []document.Document { return c.docs }

// First returns the first document, if any.
func (c *Cursor) First() (document.Document, bool) {
	if len(c.docs) == 0 {
		return nil, false
	}
	return c.docs[0], true
}

// JSON encodes the documents as a JSON array, indented when pretty is set.
func (c *Cursor) JSON(pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(c.docs, "", "  ")
	}
	return json.Marshal(c.docs)
}
