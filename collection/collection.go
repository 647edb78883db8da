// Package collection owns the live document sequence of a store and the
// operations that read and mutate it.
//
// Documents held by a Collection are never handed out for reading: Find
// copies the matches into a Cursor. Update and Remove work on the live
// documents directly, so their effects are visible to the next query
// without a save.
//
// A Collection is not safe for concurrent use.
package collection

import (
	"github.com/stevemurr/docstore/document"
	"github.com/stevemurr/docstore/query"
)

// Collection is an insertion-ordered set of documents plus the counter
// that hands out _id values. The counter never decreases, so ids are not
// reused after a removal.
type Collection struct {
	docs    []document.Document
	ids     map[int64]struct{}
	counter int64
	engine  query.Engine
}

// New returns an empty collection that evaluates queries with engine.
func New(engine query.Engine) *Collection {
	return &Collection{ids: make(map[int64]struct{}), engine: engine}
}

// Load builds a collection from previously persisted documents. Documents
// without a usable _id (missing, not a positive integer, or a duplicate of
// an earlier one) get a fresh id continuing from the largest id present.
// It returns the collection and the number of ids it had to assign.
func Load(docs []document.Document, engine query.Engine) (*Collection, int) {
	c := New(engine)
	c.docs = make([]document.Document, 0, len(docs))

	valid := make([]bool, len(docs))
	for i, d := range docs {
		if d == nil {
			continue
		}
		id, ok := d.ID()
		if !ok {
			continue
		}
		if _, dup := c.ids[id]; dup {
			continue
		}
		c.ids[id] = struct{}{}
		valid[i] = true
		d[document.IDField] = id
		if id > c.counter {
			c.counter = id
		}
	}

	backfilled := 0
	for i, d := range docs {
		if d == nil {
			continue
		}
		if !valid[i] {
			c.counter++
			d[document.IDField] = c.counter
			c.ids[c.counter] = struct{}{}
			backfilled++
		}
		c.docs = append(c.docs, d)
	}
	return c, backfilled
}

// Len returns the number of stored documents.
func (c *Collection) Len() int { return len(c.docs) }

// Counter returns the last id handed out.
func (c *Collection) Counter() int64 { return c.counter }

// Engine returns the query engine used by the collection.
func (c *Collection) Engine() query.Engine { return c.engine }

// Documents returns the live documents. Callers must not modify them; it
// exists for persisting a snapshot.
func (c *Collection) Documents() []document.Document { return c.docs }

// Match evaluates q against the live documents and returns references to
// the matches.
func (c *Collection) Match(q query.Query) ([]document.Document, error) {
	return c.engine.Evaluate(q, c.docs)
}

// Find evaluates q and returns a cursor over copies of the matches.
func (c *Collection) Find(q query.Query) (*Cursor, error) {
	matched, err := c.Match(q)
	if err != nil {
		return NewCursor(nil), err
	}
	return NewCursor(matched), nil
}

// Count returns the number of documents matching q.
func (c *Collection) Count(q query.Query) (int, error) {
	matched, err := c.Match(q)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}
