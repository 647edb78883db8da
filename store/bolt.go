package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/stevemurr/docstore/document"
)

var snapshotBucket = []byte("docstore")

// BoltBackend keeps the compressed snapshot under a single key of a bbolt
// database, the way a browser keeps a blob in key-value storage.
type BoltBackend struct {
	db  *bolt.DB
	key []byte
}

// NewBoltBackend opens (or creates) the database at path. Several stores can
// share one database file by using different keys.
func NewBoltBackend(path, key string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltBackend{db: db, key: []byte(key)}, nil
}

func (b *BoltBackend) Load() ([]document.Document, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(snapshotBucket).Get(b.key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, err
	}
	docs, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", b.key, err)
	}
	return docs, nil
}

func (b *BoltBackend) Save(docs []document.Document) error {
	raw, err := Encode(docs)
	if err != nil {
		return err
	}
	packed, err := compress(raw)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put(b.key, packed)
	})
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
