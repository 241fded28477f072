package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Enchanted-Dev-stack/we-study/internal/models"
)

// MockStore is an in-memory types.MaterialStore.
type MockStore struct {
	// StoreFunc replaces the in-memory insert when set.
	StoreFunc func(ctx context.Context, userID, sourceURL string, doc *models.StudyDocument, thumbnail *string) (string, error)

	mu        sync.Mutex
	materials []models.Material
	closed    bool
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Store(ctx context.Context, userID, sourceURL string, doc *models.StudyDocument, thumbnail *string) (string, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, userID, sourceURL, doc, thumbnail)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("material-%d", len(m.materials)+1)
	m.materials = append(m.materials, models.Material{
		ID:        id,
		UserID:    userID,
		SourceURL: sourceURL,
		Thumbnail: thumbnail,
		Document:  *doc,
		CreatedAt: time.Now(),
	})
	return id, nil
}

func (m *MockStore) Get(_ context.Context, id string) (*models.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.materials {
		if m.materials[i].ID == id {
			mat := m.materials[i]
			return &mat, nil
		}
	}
	return nil, fmt.Errorf("material %s not found", id)
}

// Similar returns the most recent materials, newest first.
func (m *MockStore) Similar(_ context.Context, _ string, limit int) ([]models.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Material
	for i := len(m.materials) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.materials[i])
	}
	return out, nil
}

func (m *MockStore) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Materials returns everything stored so far.
func (m *MockStore) Materials() []models.Material {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Material(nil), m.materials...)
}

func (m *MockStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
