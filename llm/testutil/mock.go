// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/c360studio/skitrip/llm"
)

// Reply is one scripted outcome of a Complete call.
type Reply struct {
	Content string
	Err     error
}

// MockLLMClient is a thread-safe scripted llm.Completer. Each call consumes
// the next Reply; once the script is exhausted Fallback is used, or an
// error if Fallback is nil.
//
//	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{
//	    {Content: "not json"},
//	    {Content: `{"options": []}`},
//	}}
type MockLLMClient struct {
	mu       sync.Mutex
	Replies  []Reply
	Fallback *Reply

	// Handler, if set, answers every call instead of the script.
	Handler func(ctx context.Context, req llm.Request) (*llm.Response, error)

	requests []llm.Request
	contexts []context.Context
}

// ErrScriptExhausted is returned when a call has no scripted reply.
var ErrScriptExhausted = errors.New("mock llm: no reply scripted")

var _ llm.Completer = (*MockLLMClient)(nil)

// Complete records the request and returns the next scripted reply.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, cloneRequest(req))
	m.contexts = append(m.contexts, ctx)
	handler := m.Handler

	var reply *Reply
	if handler == nil {
		if n := len(m.requests) - 1; n < len(m.Replies) {
			r := m.Replies[n]
			reply = &r
		} else {
			reply = m.Fallback
		}
	}
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, ErrScriptExhausted
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &llm.Response{Content: reply.Content, Model: "mock-model", Provider: "mock"}, nil
}

// Requests returns copies of every request received, in order.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of Complete calls.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Context returns the context passed to call i.
func (m *MockLLMClient) Context(i int) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contexts[i]
}

// Reset clears recorded calls and restarts the script.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.contexts = nil
}

// cloneRequest copies the message slice so later appends by the caller do
// not change what was recorded.
func cloneRequest(req llm.Request) llm.Request {
	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	return req
}
