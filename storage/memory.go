package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-process DocumentStore. It is the default backend for
// local runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]*Record)}
}

// Get returns a copy of the stored record.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Record, error) {
	if err := checkKey(collection, id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Record{Data: cloneBytes(rec.Data), Revision: rec.Revision}, nil
}

// Put writes the record unconditionally.
func (s *MemoryStore) Put(_ context.Context, collection, id string, data []byte) (uint64, error) {
	if err := checkKey(collection, id); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(collection, id, data), nil
}

// Create writes the record if it does not exist.
func (s *MemoryStore) Create(_ context.Context, collection, id string, data []byte) (uint64, error) {
	if err := checkKey(collection, id); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; ok {
		return 0, ErrRevisionMismatch
	}
	return s.write(collection, id, data), nil
}

// Update writes the record if its revision matches.
func (s *MemoryStore) Update(_ context.Context, collection, id string, data []byte, revision uint64) (uint64, error) {
	if err := checkKey(collection, id); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[collection][id]
	if !ok || rec.Revision != revision {
		return 0, ErrRevisionMismatch
	}
	return s.write(collection, id, data), nil
}

// Delete removes the record.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// Len returns the number of records in a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// write stores data and bumps the revision. Caller holds s.mu.
func (s *MemoryStore) write(collection, id string, data []byte) uint64 {
	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]*Record)
		s.collections[collection] = c
	}

	var rev uint64 = 1
	if prev, ok := c[id]; ok {
		rev = prev.Revision + 1
	}
	c[id] = &Record{Data: cloneBytes(data), Revision: rev}
	return rev
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
