// Package docstore is an embeddable in-memory document store.
//
// A Store loads its whole collection from a snapshot backend when opened,
// answers queries from memory, and writes the whole collection back on Save.
// Queries use a filter syntax of equality, regular expression, comparison
// ($gt, $gte, $lt, $lte, $exists) and disjunction ($or) clauses.
//
// Operations never fail on malformed input: a query that is not an object
// matches nothing, an update without $set alters nothing and an insert of
// a non-document returns -1. Only snapshot I/O reports errors.
//
// A Store is not safe for concurrent use; serialize access externally.
package docstore

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stevemurr/docstore/collection"
	"github.com/stevemurr/docstore/document"
	"github.com/stevemurr/docstore/metrics"
	"github.com/stevemurr/docstore/query"
	"github.com/stevemurr/docstore/store"
)

// ErrClosed is returned by Save after Close.
var ErrClosed = errors.New("docstore: store is closed")

// UpdateOptions controls Update.
type UpdateOptions = collection.UpdateOptions

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics reports operations to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithStrictQueries rejects clauses the engine cannot filter on instead of
// ignoring them. Rejected queries match nothing and are logged.
func WithStrictQueries() Option {
	return func(s *Store) { s.engine.Strict = true }
}

// WithLegacyExists makes $exists test truthiness rather than key presence.
// For data written by older stores.
func WithLegacyExists() Option {
	return func(s *Store) { s.engine.LegacyExists = true }
}

// Store is the public document store.
type Store struct {
	backend store.Backend
	coll    *collection.Collection
	engine  query.Engine
	log     *zap.Logger
	metrics *metrics.Metrics
	closed  bool
}

// Open loads the snapshot from backend and returns a ready store. A backend
// with no snapshot yields an empty store.
func Open(backend store.Backend, opts ...Option) (*Store, error) {
	s := &Store{backend: backend, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}

	docs, err := backend.Load()
	if err != nil {
		s.log.Error("loading snapshot", zap.Error(err))
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var backfilled int
	s.coll, backfilled = collection.Load(docs, s.engine)
	s.log.Info("snapshot loaded",
		zap.Int("documents", s.coll.Len()),
		zap.Int("backfilled_ids", backfilled),
		zap.Int64("last_id", s.coll.Counter()),
	)
	s.metrics.Documents(s.coll.Len())
	return s, nil
}

// Insert stores a document or a slice of documents and returns the last id
// assigned, or -1 when the (last) input was not a document.
func (s *Store) Insert(v any) int64 {
	before := s.coll.Len()
	id := s.coll.Insert(v)
	added := s.coll.Len() - before
	if id < 0 {
		s.log.Warn("insert skipped non-document input", zap.String("type", fmt.Sprintf("%T", v)))
	}
	s.log.Debug("insert", zap.Int("inserted", added), zap.Int64("last_id", id))
	s.metrics.Operation("insert", added)
	s.metrics.Documents(s.coll.Len())
	return id
}

// Find returns a cursor over copies of the documents matching q. A nil q
// matches everything; a q that is not an object matches nothing.
func (s *Store) Find(q any) *collection.Cursor {
	qq, ok := s.query("find", q)
	if !ok {
		return collection.NewCursor(nil)
	}
	cur, err := s.coll.Find(qq)
	if err != nil {
		s.rejected("find", err)
	}
	s.metrics.Operation("find", cur.Count())
	return cur
}

// Count returns the number of documents matching q.
func (s *Store) Count(q any) int {
	qq, ok := s.query("count", q)
	if !ok {
		return 0
	}
	n, err := s.coll.Count(qq)
	if err != nil {
		s.rejected("count", err)
	}
	s.metrics.Operation("count", 0)
	return n
}

// Update applies update's $set object to the documents matching q and
// returns how many changed. See collection.Collection.Update.
func (s *Store) Update(q any, update any, opts UpdateOptions) int {
	qq, ok := s.query("update", q)
	if !ok {
		return 0
	}
	before := s.coll.Len()
	n, err := s.coll.Update(qq, update, opts)
	if err != nil {
		s.rejected("update", err)
		return 0
	}
	s.log.Debug("update",
		zap.Int("altered", n),
		zap.Bool("multi", opts.Multi),
		zap.Bool("upserted", s.coll.Len() > before),
	)
	s.metrics.Operation("update", n)
	s.metrics.Documents(s.coll.Len())
	return n
}

// Remove deletes every document matching q and returns how many were
// removed. A nil q removes everything.
func (s *Store) Remove(q any) int {
	qq, ok := s.query("remove", q)
	if !ok {
		return 0
	}
	n, err := s.coll.Remove(qq)
	if err != nil {
		s.rejected("remove", err)
		return 0
	}
	s.log.Debug("remove", zap.Int("removed", n))
	s.metrics.Operation("remove", n)
	s.metrics.Documents(s.coll.Len())
	return n
}

// Save writes the whole collection to the backend. A failed save leaves the
// in-memory collection untouched; retrying is up to the caller.
func (s *Store) Save() error {
	if s.closed {
		return ErrClosed
	}
	start := time.Now()
	err := s.backend.Save(s.coll.Documents())
	s.metrics.Save(time.Since(start), err)
	if err != nil {
		s.log.Error("saving snapshot", zap.Error(err))
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.log.Debug("snapshot saved", zap.Int("documents", s.coll.Len()), zap.Duration("took", time.Since(start)))
	return nil
}

// Close releases the backend. It does not save.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Close()
}

// Now returns the current instant as an ISO 8601 UTC timestamp.
func (s *Store) Now() string {
	return document.Now()
}

func (s *Store) query(op string, q any) (query.Query, bool) {
	qq, ok := query.From(q)
	if !ok {
		s.log.Debug("query is not an object", zap.String("op", op), zap.String("type", fmt.Sprintf("%T", q)))
		s.metrics.Operation(op, 0)
	}
	return qq, ok
}

func (s *Store) rejected(op string, err error) {
	s.log.Warn("query rejected", zap.String("op", op), zap.Error(err))
}
