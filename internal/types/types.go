package types

import (
	"context"

	"github.com/Enchanted-Dev-stack/we-study/internal/models"
)

// Core interfaces

// ContentSource turns a URL into plain text.
type ContentSource interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Provider is a text-generation endpoint: one completion per prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator produces the partial study document for one chunk.
type Generator interface {
	Generate(ctx context.Context, chunk models.Chunk) (*models.PartialDocument, error)
}

type MaterialStore interface {
	Store(ctx context.Context, userID, sourceURL string, doc *models.StudyDocument, thumbnail *string) (string, error)
	Get(ctx context.Context, id string) (*models.Material, error)
	Similar(ctx context.Context, query string, limit int) ([]models.Material, error)
	Close()
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
