// Package storage provides document storage for skitrip schedules and LLM
// call records, with in-memory, NATS KV and MongoDB backends, plus per-plan
// write locks.
package storage

import (
	"context"
	"fmt"
	"regexp"
)

// Collection names.
const (
	CollectionSchedules = "schedules"
	CollectionPlans     = "plans"
	CollectionUsers     = "users"
	CollectionLLMCalls  = "llm_calls"
)

// Record is a stored JSON document with its revision. Revisions start at 1
// and increase on every write.
type Record struct {
	Data     []byte
	Revision uint64
}

// DocumentStore persists JSON documents by collection and id.
type DocumentStore interface {
	// Get returns the current record or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Record, error)

	// Put writes the record unconditionally and returns the new revision.
	Put(ctx context.Context, collection, id string, data []byte) (uint64, error)

	// Create writes a record that must not exist yet. It returns
	// ErrRevisionMismatch when the id is taken.
	Create(ctx context.Context, collection, id string, data []byte) (uint64, error)

	// Update writes the record only if its current revision equals revision.
	// It returns ErrRevisionMismatch otherwise.
	Update(ctx context.Context, collection, id string, data []byte, revision uint64) (uint64, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// validKey matches ids accepted by every backend (NATS KV is the strictest).
var validKey = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

func checkKey(collection, id string) error {
	if collection == "" {
		return fmt.Errorf("collection is required")
	}
	if !validKey.MatchString(id) {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}
