package mock

import (
	"context"
	"sync"

	"github.com/Enchanted-Dev-stack/we-study/internal/models"
)

// MockGenerator is a test double for types.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set. If nil, Generate returns a
	// document whose single summary point is the chunk text.
	GenerateFunc func(ctx context.Context, chunk models.Chunk) (*models.PartialDocument, error)

	mu     sync.Mutex
	chunks []models.Chunk
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) Generate(ctx context.Context, chunk models.Chunk) (*models.PartialDocument, error) {
	m.mu.Lock()
	m.chunks = append(m.chunks, chunk)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, chunk)
	}
	return &models.PartialDocument{
		Summary:    []string{chunk.Text},
		Flashcards: []models.Flashcard{},
		Quiz:       []models.QuizItem{},
	}, nil
}

func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

// Chunks returns the chunks received, in call order.
func (m *MockGenerator) Chunks() []models.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Chunk(nil), m.chunks...)
}
