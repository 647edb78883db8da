package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/stevemurr/docstore/document"
)

// JsonFileBackend stores the snapshot as one JSON array in a file, optionally
// zstd-compressed.
//
// Layout:
//
//	data_dir/
//	  docstore.json       # plain snapshot
//	  docstore.json.zst   # compressed snapshot
type JsonFileBackend struct {
	mu       sync.Mutex
	path     string
	compress bool
}

func NewJsonFileBackend(path string, compress bool) (*JsonFileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &JsonFileBackend{path: path, compress: compress}, nil
}

// Path returns the snapshot file location.
func (s *JsonFileBackend) Path() string { return s.path }

func (s *JsonFileBackend) Load() ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	docs, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return docs, nil
}

// Save writes to a temporary file next to the snapshot and renames it into
// place, so a failed save leaves the previous snapshot intact.
func (s *JsonFileBackend) Save(docs []document.Document) error {
	b, err := Encode(docs)
	if err != nil {
		return err
	}
	if s.compress {
		if b, err = compress(b); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *JsonFileBackend) Close() error { return nil }
