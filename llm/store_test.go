package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/skitrip/storage"
)

func TestCallStore_StoreAndGet(t *testing.T) {
	store, err := NewCallStore(storage.NewMemoryStore())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	record := &CallRecord{
		RequestID:   "req-1",
		PlanID:      "P1",
		Stage:       "accommodation",
		Attempt:     2,
		Capability:  "research",
		Model:       "gpt-4o-search-preview",
		Provider:    "openai",
		Messages:    []Message{{Role: "user", Content: "Find lodging"}},
		Response:    `{"accommodationOutput": {}}`,
		Search:      &WebSearch{AllowedDomains: []string{"www.airbnb.com"}},
		Citations:   []Citation{{URL: "https://www.airbnb.com/rooms/1"}},
		StartedAt:   now,
		CompletedAt: now.Add(1500 * time.Millisecond),
		DurationMs:  1500,
	}
	require.NoError(t, store.Store(context.Background(), record))

	got, err := store.Get(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, record.PlanID, got.PlanID)
	assert.Equal(t, record.Attempt, got.Attempt)
	assert.Equal(t, record.Search, got.Search)
	assert.Equal(t, record.Citations, got.Citations)
	assert.True(t, record.StartedAt.Equal(got.StartedAt))

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCallStore_StoreRequiresRequestID(t *testing.T) {
	store, err := NewCallStore(storage.NewMemoryStore())
	require.NoError(t, err)
	assert.Error(t, store.Store(context.Background(), &CallRecord{}))
}

func TestNewCallStore_NilStore(t *testing.T) {
	_, err := NewCallStore(nil)
	assert.Error(t, err)
}

func TestSortByStartTime(t *testing.T) {
	now := time.Now()
	records := []*CallRecord{
		{RequestID: "c", StartedAt: now.Add(2 * time.Second)},
		{RequestID: "a", StartedAt: now},
		{RequestID: "b", StartedAt: now.Add(time.Second)},
	}
	SortByStartTime(records)
	assert.Equal(t, "a", records[0].RequestID)
	assert.Equal(t, "b", records[1].RequestID)
	assert.Equal(t, "c", records[2].RequestID)
}

func TestTraceContext(t *testing.T) {
	assert.Equal(t, TraceContext{}, GetTraceContext(context.Background()))

	ctx := WithTraceContext(context.Background(), TraceContext{PlanID: "P1", Stage: "itinerary", Attempt: 1})
	assert.Equal(t, TraceContext{PlanID: "P1", Stage: "itinerary", Attempt: 1}, GetTraceContext(ctx))
}
