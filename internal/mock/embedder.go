package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

// MockEmbedder is a test double for types.Embedder producing deterministic
// vectors derived from a hash of each text.
type MockEmbedder struct {
	CreateEmbeddingFunc func(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions          int

	callCount atomic.Int64
}

func NewMockEmbedder(dimensions int) *MockEmbedder {
	return &MockEmbedder{Dimensions: dimensions}
}

func (m *MockEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)
	if m.CreateEmbeddingFunc != nil {
		return m.CreateEmbeddingFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		h := fnv.New32a()
		_, _ = h.Write([]byte(t))
		seed := h.Sum32()
		vec := make([]float32, m.Dimensions)
		for d := range vec {
			vec[d] = float32((seed>>(uint(d)%32))&0xff) / 255
		}
		out[i] = vec
	}
	return out, nil
}

func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}
