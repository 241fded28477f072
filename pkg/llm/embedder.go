package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/internal/types"
)

// EmbedderConfig represents the configuration for the summary embedder.
type EmbedderConfig struct {
	Model   string
	BaseURL string // Ollama server URL
}

// Embedder turns study documents into vectors for similarity search.
type Embedder struct {
	Config EmbedderConfig
	Embed  types.Embedder
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	emb, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return &Embedder{Config: config, Embed: emb}, nil
}

// CreateEmbedding embeds texts with the underlying model.
func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return e.Embed.CreateEmbedding(ctx, texts)
}

// DocumentText is the text stored materials are embedded from: the summary
// points one per line, then the hashtags.
func DocumentText(doc *models.StudyDocument) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range doc.Summary {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	if len(doc.Hashtags) > 0 {
		b.WriteString(strings.Join(doc.Hashtags, " "))
	}
	return strings.TrimSpace(b.String())
}
