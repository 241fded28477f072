package mock

import (
	"context"
	"sync"
)

// Reply is one scripted provider response.
type Reply struct {
	Text string
	Err  error
}

// MockProvider is a test double for types.Provider. Replies are consumed in
// order; the last one repeats once the script is exhausted.
type MockProvider struct {
	// CompleteFunc replaces the script when set.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	replies []Reply
	prompts []string
}

func NewMockProvider(replies ...Reply) *MockProvider {
	return &MockProvider{replies: replies}
}

func (m *MockProvider) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	n := len(m.prompts)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	idx := n - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	r := m.replies[idx]
	return r.Text, r.Err
}

// CallCount returns the number of Complete calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns every prompt received, in call order.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
