package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/stevemurr/docstore/document"
)

// SqliteBackend stores the snapshot in a SQLite database, one row per
// document. The caller must import a driver registered as "sqlite3".
//
// Tables:
//
//	documents(seq, id, data)  PRIMARY KEY (seq)
type SqliteBackend struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSqliteBackend(dbPath string) (*SqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY,
		id INTEGER NOT NULL,
		data TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteBackend{db: db}, nil
}

func (s *SqliteBackend) Close() error {
	return s.db.Close()
}

// Load returns the documents in saved order. An empty table counts as no
// snapshot.
func (s *SqliteBackend) Load() ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT data FROM documents ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []document.Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		docs = append(docs, decodeDocument(m))
	}
	return docs, rows.Err()
}

// Save replaces every row in a single transaction.
func (s *SqliteBackend) Save(docs []document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM documents"); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO documents (seq, id, data) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, d := range docs {
		b, err := encodeDocument(d)
		if err != nil {
			return err
		}
		id, _ := d.ID()
		if _, err := stmt.Exec(i, id, string(b)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
