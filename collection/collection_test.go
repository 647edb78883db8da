package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/docstore/document"
	"github.com/stevemurr/docstore/query"
)

func seeded(t *testing.T) *Collection {
	t.Helper()
	c := New(query.Engine{})
	require.Equal(t, int64(1), c.Insert(map[string]any{"a": 1}))
	require.Equal(t, int64(2), c.Insert(map[string]any{"a": 2, "b": 2}))
	require.Equal(t, int64(3), c.Insert(map[string]any{"a": 3, "b": 3, "c": 3}))
	return c
}

func ids(docs []document.Document) []int64 {
	out := []int64{}
	for _, d := range docs {
		id, _ := d.ID()
		out = append(out, id)
	}
	return out
}

func q(v any) query.Query { return query.MustFrom(v) }

func TestFindConditionalScenario(t *testing.T) {
	c := seeded(t)

	cur, err := c.Find(q(map[string]any{"b": map[string]any{"$gt": 1}}))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(cur.All()))

	cur, err = c.Find(q(map[string]any{"b": map[string]any{"$gt": 1}}))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, ids(cur.Sort("_id", Descending).All()))
}

func TestInsertIDs(t *testing.T) {
	c := New(query.Engine{})
	assert.Equal(t, int64(2), c.Insert([]any{map[string]any{"x": 1}, document.Document{"x": 2}}))
	assert.Equal(t, int64(-1), c.Insert("nope"))
	assert.Equal(t, int64(-1), c.Insert([]any{map[string]any{"x": 3}, 42}), "last element decides")
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, int64(-1), c.Insert([]any{}))

	assert.Equal(t, int64(10), c.Insert(map[string]any{"_id": 10}))
	assert.Equal(t, int64(-1), c.Insert(map[string]any{"_id": 10}), "taken id")
	assert.Equal(t, int64(-1), c.Insert(map[string]any{"_id": "abc"}), "invalid id")
	assert.Equal(t, int64(11), c.Insert(map[string]any{"y": true}))
}

func TestInsertCopiesInput(t *testing.T) {
	c := New(query.Engine{})
	in := map[string]any{"x": 1}
	c.Insert(in)
	in["x"] = 99
	_, hasID := in["_id"]
	assert.False(t, hasID)

	n, err := c.Count(q(map[string]any{"x": 1}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIDsNeverReused(t *testing.T) {
	c := seeded(t)
	n, err := c.Remove(q(map[string]any{"c": map[string]any{"$exists": true}}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, c.Len())

	var last int64 = 3
	for i := 0; i < 5; i++ {
		id := c.Insert(map[string]any{"i": i})
		assert.Greater(t, id, last)
		last = id
	}
	cur, err := c.Find(q(map[string]any{"_id": 3}))
	require.NoError(t, err)
	assert.Zero(t, cur.Count())
}

func TestUpdateMulti(t *testing.T) {
	c := seeded(t)
	n, err := c.Update(q(map[string]any{"b": map[string]any{"$exists": true}}),
		map[string]any{"$set": map[string]any{"flag": true}}, UpdateOptions{Multi: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cur, err := c.Find(q(map[string]any{"flag": true}))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(cur.All()))
}

func TestUpdateSingleAltersFirstMatch(t *testing.T) {
	c := seeded(t)
	n, err := c.Update(q(map[string]any{"a": map[string]any{"$gte": 2}}),
		map[string]any{"$set": map[string]any{"a": 10}}, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cur, _ := c.Find(q(map[string]any{"a": 10}))
	assert.Equal(t, []int64{2}, ids(cur.All()))
}

func TestUpdateCountsOnlyChangedDocuments(t *testing.T) {
	c := seeded(t)
	n, err := c.Update(nil, map[string]any{"$set": map[string]any{"a": 2}}, UpdateOptions{Multi: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "document 2 already has a=2")

	n, err = c.Update(nil, map[string]any{"$set": map[string]any{"_id": 99}}, UpdateOptions{Multi: true})
	require.NoError(t, err)
	assert.Zero(t, n, "_id is immutable")
}

func TestUpdateWithoutSet(t *testing.T) {
	c := seeded(t)
	for _, u := range []any{
		map[string]any{"$inc": map[string]any{"a": 1}},
		map[string]any{"$set": 5},
		map[string]any{"a": 1},
		"bogus",
		nil,
	} {
		n, err := c.Update(nil, u, UpdateOptions{Multi: true, Upsert: true})
		require.NoError(t, err)
		assert.Zero(t, n, "%v", u)
	}
	assert.Equal(t, 3, c.Len())
}

func TestUpsert(t *testing.T) {
	c := seeded(t)
	n, err := c.Update(q(map[string]any{"missing": "x"}),
		map[string]any{"$set": map[string]any{"created": true}}, UpdateOptions{Upsert: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Equal(t, 4, c.Len())

	last := c.Documents()[3]
	assert.Equal(t, document.Document{"created": true, "_id": int64(4)}, last, "query fields are not merged")

	n, err = c.Update(q(map[string]any{"missing": "x"}),
		map[string]any{"$set": map[string]any{"created": true}}, UpdateOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateIsVisibleWithoutCopy(t *testing.T) {
	c := seeded(t)
	_, err := c.Update(q(map[string]any{"_id": 1}), query.Query{{Key: "$set", Value: query.Query{{Key: "a", Value: "one"}}}}, UpdateOptions{})
	require.NoError(t, err)

	cur, _ := c.Find(q(map[string]any{"_id": 1}))
	doc, ok := cur.First()
	require.True(t, ok)
	assert.Equal(t, document.Document{"_id": int64(1), "a": "one"}, doc)
}

func TestFindIsolation(t *testing.T) {
	c := seeded(t)
	_, err := c.Update(q(map[string]any{"_id": 1}), map[string]any{"$set": map[string]any{"nested": map[string]any{"k": "v"}}}, UpdateOptions{})
	require.NoError(t, err)

	cur, _ := c.Find(q(map[string]any{"_id": 1}))
	doc, _ := cur.First()
	doc["a"] = 100
	doc["nested"].(map[string]any)["k"] = "changed"

	again, _ := c.Find(q(map[string]any{"_id": 1}))
	fresh, _ := again.First()
	assert.Equal(t, 1, fresh["a"])
	assert.Equal(t, "v", fresh["nested"].(map[string]any)["k"])
}

func TestRemove(t *testing.T) {
	c := seeded(t)
	n, err := c.Remove(q(map[string]any{"a": 42}))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.Remove(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, c.Len())
	assert.Equal(t, int64(4), c.Insert(map[string]any{}))
}

func TestLoadBackfillsIDs(t *testing.T) {
	docs := []document.Document{
		{"name": "no id"},
		{"_id": 7.0, "name": "float id"},
		{"_id": int64(3)},
		{"_id": int64(3), "name": "duplicate"},
		{"_id": "x"},
		nil,
	}
	c, backfilled := Load(docs, query.Engine{})
	assert.Equal(t, 3, backfilled)
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, []int64{8, 7, 3, 9, 10}, ids(c.Documents()))
	assert.Equal(t, int64(10), c.Counter())
	assert.Equal(t, int64(11), c.Insert(map[string]any{}))

	id, ok := c.Documents()[1].ID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.IsType(t, int64(0), c.Documents()[1]["_id"])
}

func TestUpdateRewritesFalsyFields(t *testing.T) {
	for _, engine := range []query.Engine{{}, {LegacyExists: true}} {
		c := New(engine)
		c.Insert([]any{
			map[string]any{"n": 0},
			map[string]any{"n": ""},
			map[string]any{"n": false},
			map[string]any{"n": nil},
			map[string]any{"n": 1},
		})
		n, err := c.Update(nil, map[string]any{"$set": map[string]any{"n": 0}}, UpdateOptions{Multi: true})
		require.NoError(t, err)
		assert.Equal(t, 5, n, "legacy=%v", engine.LegacyExists)

		n, err = c.Update(q(map[string]any{"_id": 5}), map[string]any{"$set": map[string]any{"n": 0}}, UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, n, "a falsy field counts as changed when set to the same value")

		c.Insert(map[string]any{"n": 7})
		n, err = c.Update(q(map[string]any{"_id": 6}), map[string]any{"$set": map[string]any{"n": 7}}, UpdateOptions{})
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestStrictErrorsSurface(t *testing.T) {
	c := New(query.Engine{Strict: true})
	c.Insert(map[string]any{"a": 1})

	_, err := c.Find(q(map[string]any{"a.b": 1}))
	assert.ErrorIs(t, err, query.ErrUnsupportedClause)
	n, err := c.Remove(q(map[string]any{"a": []any{1}}))
	assert.ErrorIs(t, err, query.ErrUnsupportedClause)
	assert.Zero(t, n)
	assert.Equal(t, 1, c.Len())
}
