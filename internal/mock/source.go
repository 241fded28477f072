package mock

import (
	"context"
	"sync/atomic"
)

// MockContentSource is a test double for types.ContentSource.
type MockContentSource struct {
	ExtractFunc func(ctx context.Context, url string) (string, error)
	Content     string

	callCount atomic.Int64
}

func NewMockContentSource(content string) *MockContentSource {
	return &MockContentSource{Content: content}
}

func (m *MockContentSource) Extract(ctx context.Context, url string) (string, error) {
	m.callCount.Add(1)
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, url)
	}
	return m.Content, nil
}

func (m *MockContentSource) CallCount() int {
	return int(m.callCount.Load())
}
