package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/mediapulse/patternlab/pkg/budget"
)

// MockClient replays canned responses in order. Safe for concurrent use.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	next      int
	// Err, when set, fails every call.
	Err error
	// TokensPerCall is charged per request; defaults to 100.
	TokensPerCall int
	// Requests records every request received, in order.
	Requests []Request
}

// NewMockClient queues the given response bodies.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

// Generate implements Client.
func (m *MockClient) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.next >= len(m.responses) {
		return nil, fmt.Errorf("mock llm: no response queued for call %d", m.next+1)
	}
	content := m.responses[m.next]
	m.next++

	tokens := m.TokensPerCall
	if tokens == 0 {
		tokens = 100
	}
	return &Response{
		Content:      content,
		Tier:         req.Tier,
		Model:        "mock-" + string(req.Tier),
		InputTokens:  tokens / 2,
		OutputTokens: tokens - tokens/2,
		Cost:         budget.CalculateCost(req.Tier, tokens),
	}, nil
}

// Calls returns how many requests the mock has served.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

var _ Client = (*MockClient)(nil)
var _ Client = (*TieredClient)(nil)
