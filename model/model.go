package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/archmesh/core"
)

// Message is one provider-neutral chat turn.
type Message struct {
	Role    core.MessageRole `json:"role"`
	Content string           `json:"content"`
}

// Request captures the normalized model input produced by the gateway.
type Request struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int64     `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming provider.
// Partial chunks carry a text delta; the final chunk has Partial=false and
// may carry usage. A stream that closes without a final chunk is malformed.
type Response struct {
	Delta        string      `json:"delta,omitempty"`
	Partial      bool        `json:"partial"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Provider is the minimal interface required by the gateway to drive generation.
type Provider interface {
	// Name returns the routing name ("anthropic", "openai", "gemini", ...).
	Name() string
	// Generate streams the completion. The response channel is closed when the
	// stream ends; at most one error is delivered on the error channel.
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)
}

// FromHistory splits a conversation history into its system prompt and the
// remaining chat turns.
func FromHistory(history []core.AgentMessage) (string, []Message) {
	var system []string
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role == core.MessageRoleSystem {
			system = append(system, m.Content)
			continue
		}
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	return strings.Join(system, "\n\n"), msgs
}

// MockProvider is a lightweight in-memory Provider useful for tests & examples.
// It streams its reply rune by rune and can be scripted to fail.
type MockProvider struct {
	name string

	mu        sync.Mutex
	responses map[string]string
	failures  []error
	calls     []Request
}

// NewMockProvider constructs a MockProvider registered under the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name, responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned completion for a final user message.
func (m *MockProvider) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailNext queues errors returned by the next calls, one per call.
func (m *MockProvider) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Calls returns a copy of the requests received so far.
func (m *MockProvider) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Name implements Provider.
func (m *MockProvider) Name() string { return m.name }

// Generate implements Provider; emits per-rune partial chunks then a final chunk.
func (m *MockProvider) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls = append(m.calls, req)
	var failure error
	if len(m.failures) > 0 {
		failure, m.failures = m.failures[0], m.failures[1:]
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if failure != nil {
			errCh <- failure
			return
		}
		if len(req.Messages) == 0 {
			errCh <- NewError(KindMalformedResponse, m.name, errors.New("no messages provided"))
			return
		}
		input := req.Messages[len(req.Messages)-1].Content
		m.mu.Lock()
		full := m.responses[input]
		m.mu.Unlock()
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", input)
		}
		for _, r := range full {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- Response{Delta: string(r), Partial: true}:
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{FinishReason: "stop"}:
		}
	}()
	return respCh, errCh
}
