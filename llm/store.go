package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/c360studio/skitrip/storage"
)

// CallRecord describes one Complete call for trajectory tracking.
type CallRecord struct {
	RequestID string `json:"request_id"`

	// PlanID and Stage correlate the call with the pipeline run that made it.
	PlanID string `json:"plan_id,omitempty"`
	Stage  string `json:"stage,omitempty"`

	// Attempt is the stage-level attempt number (accommodation retries).
	Attempt int `json:"attempt,omitempty"`

	Capability string    `json:"capability"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	Messages   []Message `json:"messages"`
	Response   string    `json:"response"`

	// Search is the web search request sent with the call, if any.
	Search    *WebSearch `json:"search,omitempty"`
	Citations []Citation `json:"citations,omitempty"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ContextBudget    int `json:"context_budget,omitempty"`

	FinishReason string    `json:"finish_reason"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMs   int64     `json:"duration_ms"`

	Error string `json:"error,omitempty"`

	// Retries counts same-endpoint retries across the whole call.
	Retries int `json:"retries"`

	// FallbacksUsed lists endpoints that failed before the final one.
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`
}

// CallStore persists CallRecords in a document store.
type CallStore struct {
	store  storage.DocumentStore
	logger *slog.Logger
}

// CallStoreOption configures a CallStore.
type CallStoreOption func(*CallStore)

// WithStoreLogger sets the logger for the LLM call store.
func WithStoreLogger(logger *slog.Logger) CallStoreOption {
	return func(s *CallStore) {
		s.logger = logger
	}
}

// NewCallStore creates a call store on store.
func NewCallStore(store storage.DocumentStore, opts ...CallStoreOption) (*CallStore, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}

	s := &CallStore{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store writes a record keyed by its request id.
func (s *CallStore) Store(ctx context.Context, record *CallRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if record.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}

	if _, err := s.store.Put(ctx, storage.CollectionLLMCalls, record.RequestID, data); err != nil {
		return fmt.Errorf("store call record: %w", err)
	}

	s.logger.Debug("Stored LLM call",
		"request_id", record.RequestID,
		"plan_id", record.PlanID,
		"stage", record.Stage,
		"capability", record.Capability)

	return nil
}

// Get loads a record by request id.
func (s *CallStore) Get(ctx context.Context, requestID string) (*CallRecord, error) {
	rec, err := s.store.Get(ctx, storage.CollectionLLMCalls, requestID)
	if err != nil {
		return nil, err
	}

	var record CallRecord
	if err := json.Unmarshal(rec.Data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal call record %s: %w", requestID, err)
	}
	return &record, nil
}

// SortByStartTime sorts records chronologically by StartedAt.
func SortByStartTime(records []*CallRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}

// TraceContext carries pipeline correlation through the context.
type TraceContext struct {
	PlanID  string
	Stage   string
	Attempt int
}

type traceContextKey struct{}

// WithTraceContext adds trace information to a context.
func WithTraceContext(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTraceContext extracts trace information from a context.
func GetTraceContext(ctx context.Context) TraceContext {
	if tc, ok := ctx.Value(traceContextKey{}).(TraceContext); ok {
		return tc
	}
	return TraceContext{}
}
