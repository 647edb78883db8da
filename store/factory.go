package store

import (
	"fmt"
	"path/filepath"
)

// New creates a Backend based on the backend name.
//
// Supported backends:
//
//	"json"     - JSON array in dataDir/docstore.json (default)
//	"json.zst" - zstd-compressed JSON in dataDir/docstore.json.zst
//	"sqlite"   - SQLite database at dataDir/docstore.db
//	"bolt"     - bbolt database at dataDir/docstore.bolt, key "snapshot"
//	"memory"   - In-memory (ephemeral, for testing)
func New(backend, dataDir string) (Backend, error) {
	switch backend {
	case "json", "":
		return NewJsonFileBackend(filepath.Join(dataDir, "docstore.json"), false)
	case "json.zst":
		return NewJsonFileBackend(filepath.Join(dataDir, "docstore.json.zst"), true)
	case "sqlite":
		return NewSqliteBackend(filepath.Join(dataDir, "docstore.db"))
	case "bolt":
		return NewBoltBackend(filepath.Join(dataDir, "docstore.bolt"), "snapshot")
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: json, json.zst, sqlite, bolt, memory)", ErrUnknownBackend, backend)
	}
}
