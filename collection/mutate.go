package collection

import (
	"sort"

	"github.com/stevemurr/docstore/document"
	"github.com/stevemurr/docstore/query"
)

// UpdateOptions controls Update.
type UpdateOptions struct {
	// Multi alters every match instead of only the first.
	Multi bool
	// Upsert inserts the $set object as a new document when nothing matches.
	Upsert bool
}

// Insert stores v, which is a document or a slice of documents, and returns
// the last id assigned. Elements that are not documents are skipped and
// yield -1, as does an element carrying an _id that is invalid or taken.
// Inserted documents are copied; later changes to v do not reach the
// collection.
func (c *Collection) Insert(v any) int64 {
	switch t := v.(type) {
	case []document.Document:
		last := int64(-1)
		for _, d := range t {
			last = c.insertOne(d)
		}
		return last
	case []map[string]any:
		last := int64(-1)
		for _, d := range t {
			last = c.insertOne(d)
		}
		return last
	case []any:
		last := int64(-1)
		for _, d := range t {
			last = c.insertOne(d)
		}
		return last
	}
	return c.insertOne(v)
}

func (c *Collection) insertOne(v any) int64 {
	if q, ok := v.(query.Query); ok {
		v = q.Map()
	}
	src, ok := document.From(v)
	if !ok {
		return -1
	}
	d := document.Clone(src)

	var id int64
	if raw, present := d[document.IDField]; present {
		id, ok = document.AsID(raw)
		if !ok {
			return -1
		}
		if _, taken := c.ids[id]; taken {
			return -1
		}
		if id > c.counter {
			c.counter = id
		}
	} else {
		c.counter++
		id = c.counter
	}
	d[document.IDField] = id
	c.ids[id] = struct{}{}
	c.docs = append(c.docs, d)
	return id
}

// Update applies the $set object of update to the documents matching q and
// returns how many documents had at least one field change. An update
// without a $set object alters nothing. Without opts.Multi only the first
// match is considered. With opts.Upsert and no match, the $set object is
// inserted as a new document and 1 is returned.
func (c *Collection) Update(q query.Query, update any, opts UpdateOptions) (int, error) {
	set, ok := setObject(update)
	if !ok {
		return 0, nil
	}
	matched, err := c.Match(q)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		if opts.Upsert && c.insertOne(set) > 0 {
			return 1, nil
		}
		return 0, nil
	}
	if !opts.Multi {
		matched = matched[:1]
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		if k != document.IDField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	altered := 0
	for _, d := range matched {
		if c.apply(d, set, keys) {
			altered++
		}
	}
	return altered, nil
}

// apply writes the fields of set into the live document d in place. A field
// changes when it is absent, falsy or holds a different value.
func (c *Collection) apply(d document.Document, set map[string]any, keys []string) bool {
	changed := false
	for _, k := range keys {
		v := set[k]
		// Falsy fields are rewritten even when the value is the same.
		if old, present := d[k]; !present || !document.Truthy(old) || !document.Equal(old, v) {
			d[k] = document.CloneValue(v)
			changed = true
		}
	}
	return changed
}

func setObject(update any) (map[string]any, bool) {
	var raw any
	switch u := update.(type) {
	case query.Query:
		v, ok := u.Get("$set")
		if !ok {
			return nil, false
		}
		raw = v
	case document.Document:
		raw = u["$set"]
	case map[string]any:
		raw = u["$set"]
	default:
		return nil, false
	}
	switch s := raw.(type) {
	case query.Query:
		return s.Map(), true
	case document.Document:
		return s, s != nil
	case map[string]any:
		return s, s != nil
	}
	return nil, false
}

// Remove deletes every document matching q and returns how many were
// removed. An empty q removes everything.
func (c *Collection) Remove(q query.Query) (int, error) {
	matched, err := c.Match(q)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	doomed := make(map[int64]struct{}, len(matched))
	for _, d := range matched {
		if id, ok := d.ID(); ok {
			doomed[id] = struct{}{}
		}
	}

	kept := make([]document.Document, 0, len(c.docs)-len(doomed))
	removed := 0
	for _, d := range c.docs {
		id, _ := d.ID()
		if _, ok := doomed[id]; ok {
			delete(c.ids, id)
			removed++
			continue
		}
		kept = append(kept, d)
	}
	c.docs = kept
	return removed, nil
}
