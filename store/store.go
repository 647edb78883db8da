// Package store defines the snapshot backend interface and implementations.
//
// A backend persists a collection as one whole snapshot: Load is called once
// when a store opens and Save replaces everything previously saved.
//
// Snapshots are JSON. Times are written as {"$date": "<RFC3339>"}, and a
// stored object whose only key is "$date" or "$literal" is wrapped in
// {"$literal": ...} so that it reads back unchanged.
package store

import (
	"errors"

	"github.com/stevemurr/docstore/document"
)

var (
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
	// ErrCorruptSnapshot is returned by Load when saved data cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// Backend is the interface that all snapshot backends must implement.
type Backend interface {
	// Load returns the saved documents, or nil and no error when nothing
	// has been saved yet.
	Load() ([]document.Document, error)

	// Save replaces the stored snapshot with docs. On failure the previous
	// snapshot is left as the backend found it, where the medium allows.
	Save(docs []document.Document) error

	// Close releases files or handles held by the backend.
	Close() error
}
