package store

import (
	"sync"

	"github.com/stevemurr/docstore/document"
)

// MemoryBackend keeps the encoded snapshot in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryBackend struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Load decodes the last saved snapshot, so callers never share documents
// with the backend.
func (m *MemoryBackend) Load() ([]document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, nil
	}
	return Decode(m.data)
}

func (m *MemoryBackend) Save(docs []document.Document) error {
	b, err := Encode(docs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = b
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
