package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/docstore/document"
	"github.com/stevemurr/docstore/store"
)

func snapshot() []document.Document {
	return []document.Document{
		{"_id": int64(2), "title": "hello", "count": float64(42)},
		{"_id": int64(1), "tags": []any{"a", "b"}, "meta": map[string]any{"ok": true, "n": nil}},
		{"_id": int64(7), "at": time.Date(2024, 2, 29, 13, 0, 0, 123000000, time.UTC)},
	}
}

// runBackendTests runs a common test suite against any Backend implementation.
func runBackendTests(t *testing.T, b store.Backend) {
	t.Helper()

	t.Run("Load empty", func(t *testing.T) {
		docs, err := b.Load()
		require.NoError(t, err)
		assert.Nil(t, docs)
	})

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, b.Save(snapshot()))
		docs, err := b.Load()
		require.NoError(t, err)
		require.Len(t, docs, 3)

		assert.Equal(t, []int64{2, 1, 7}, []int64{docs[0][document.IDField].(int64), docs[1][document.IDField].(int64), docs[2][document.IDField].(int64)})
		for i, want := range snapshot() {
			assert.True(t, document.Equal(want, docs[i]), "doc %d: %v != %v", i, want, docs[i])
		}
		at, ok := docs[2]["at"].(time.Time)
		require.True(t, ok, "dates round trip")
		assert.True(t, at.Equal(snapshot()[2]["at"].(time.Time)))
	})

	t.Run("Loaded documents are detached", func(t *testing.T) {
		docs, err := b.Load()
		require.NoError(t, err)
		docs[0]["title"] = "mutated"
		again, err := b.Load()
		require.NoError(t, err)
		assert.Equal(t, "hello", again[0]["title"])
	})

	t.Run("Save replaces", func(t *testing.T) {
		require.NoError(t, b.Save([]document.Document{{"_id": int64(9), "only": "one"}}))
		docs, err := b.Load()
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "one", docs[0]["only"])
	})

	t.Run("Objects shaped like wrappers", func(t *testing.T) {
		want := []document.Document{{
			"_id":  int64(1),
			"date": map[string]any{"$date": "2024-01-01T00:00:00Z"},
			"lit":  map[string]any{"$literal": map[string]any{"$date": "x"}},
			"num":  map[string]any{"$literal": 5.0},
			"both": map[string]any{"$date": "2024-01-01T00:00:00Z", "other": true},
		}}
		require.NoError(t, b.Save(want))
		docs, err := b.Load()
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, want[0], docs[0])
	})
}

func TestMemoryBackend(t *testing.T) {
	runBackendTests(t, store.NewMemoryBackend())
}

func TestJsonFileBackend(t *testing.T) {
	dir := t.TempDir()
	b, err := store.NewJsonFileBackend(filepath.Join(dir, "nested", "docstore.json"), false)
	require.NoError(t, err)
	runBackendTests(t, b)

	raw, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	assert.Equal(t, byte('['), raw[0], "plain snapshot is a JSON array")

	entries, err := os.ReadDir(filepath.Dir(b.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestJsonFileBackendCompressed(t *testing.T) {
	dir := t.TempDir()
	b, err := store.NewJsonFileBackend(filepath.Join(dir, "docstore.json.zst"), true)
	require.NoError(t, err)
	runBackendTests(t, b)

	raw, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	assert.NotEqual(t, byte('['), raw[0])
}

func TestJsonFileBackendCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docstore.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0o644))
	b, err := store.NewJsonFileBackend(path, false)
	require.NoError(t, err)
	_, err = b.Load()
	assert.ErrorIs(t, err, store.ErrCorruptSnapshot)
}

func TestSqliteBackend(t *testing.T) {
	dir := t.TempDir()
	b, err := store.NewSqliteBackend(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer b.Close()
	runBackendTests(t, b)
}

func TestBoltBackend(t *testing.T) {
	dir := t.TempDir()
	b, err := store.NewBoltBackend(filepath.Join(dir, "test.bolt"), "snapshot")
	require.NoError(t, err)
	defer b.Close()
	runBackendTests(t, b)
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"json", "", "json.zst", "sqlite", "bolt", "memory"} {
		b, err := store.New(name, dir)
		require.NoError(t, err, name)
		require.NoError(t, b.Save(snapshot()), name)
		docs, err := b.Load()
		require.NoError(t, err, name)
		assert.Len(t, docs, 3, name)
		require.NoError(t, b.Close(), name)
	}

	_, err := store.New("redis", dir)
	assert.ErrorIs(t, err, store.ErrUnknownBackend)
}

func TestEncodeEscapesWrapperShapedObjects(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []document.Document{{"x": map[string]any{"$date": "2024-01-01T00:00:00Z"}, "at": at}}
	data, err := store.Encode(in)
	require.NoError(t, err)

	docs, err := store.Decode(data)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]any{"$date": "2024-01-01T00:00:00Z"}, docs[0]["x"])
	got, ok := docs[0]["at"].(time.Time)
	require.True(t, ok)
	assert.True(t, at.Equal(got))
}

func TestDecodeSkipsNullEntries(t *testing.T) {
	docs, err := store.Decode([]byte(`[{"_id": 3, "x": 1}, null, {"x": {"$date": "nope"}}]`))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(3), docs[0]["_id"])
	assert.Equal(t, map[string]any{"$date": "nope"}, docs[1]["x"])
}
