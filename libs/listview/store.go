package listview

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Fetcher loads the authoritative collection from the backend.
type Fetcher[T any] func(ctx context.Context) ([]T, error)

// Store holds the collection fetched for one screen instance. Records are
// patched in place by id and never deleted locally; only a refresh replaces
// the collection.
type Store[T any] struct {
	mu        sync.RWMutex
	fetch     Fetcher[T]
	id        func(T) string
	records   []T
	loaded    bool
	fetchedAt time.Time
	now       func() time.Time
}

// NewStore returns an empty store backed by fetch.
func NewStore[T any](fetch Fetcher[T], id func(T) string) *Store[T] {
	return &Store[T]{fetch: fetch, id: id, now: time.Now}
}

// Refresh replaces the collection with a fresh fetch. On failure the
// previous snapshot is kept.
func (s *Store[T]) Refresh(ctx context.Context) error {
	if s.fetch == nil {
		return errors.New("listview: store has no fetcher")
	}
	records, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records = append([]T(nil), records...)
	s.loaded = true
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current collection.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.records...)
}

// Loaded reports whether at least one refresh succeeded.
func (s *Store[T]) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// FetchedAt returns the time of the last successful refresh.
func (s *Store[T]) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Find returns the record with id.
func (s *Store[T]) Find(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if s.id(record) == id {
			return record, true
		}
	}
	var zero T
	return zero, false
}

// Patch applies fn to the record with id. It reports whether the record
// was found.
func (s *Store[T]) Patch(id string, fn func(T) T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, record := range s.records {
		if s.id(record) == id {
			s.records[i] = fn(record)
			return true
		}
	}
	return false
}

// Replace swaps the record with id for updated.
func (s *Store[T]) Replace(id string, updated T) bool {
	return s.Patch(id, func(T) T { return updated })
}
