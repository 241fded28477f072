package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/tmc/langchaingo/prompts"

	"github.com/Enchanted-Dev-stack/we-study/internal/models"
)

// DefaultTemplate is the instruction template used when none is configured.
// It receives the chunk as {{.content}} and the target schema as {{.schema}}.
const DefaultTemplate = `You are an expert tutor preparing study material from a transcript excerpt.

Read the content below and respond with ONE JSON object and nothing else: no
markdown, no code fences, no commentary before or after it.

The object must match this JSON Schema:
{{.schema}}

Rules:
- "summary" is a list of short, self-contained key points.
- Every quiz question has exactly 4 options and "correctAnswer" is copied verbatim from one of them.
- "difficulty" is one of easy, medium, hard, extreme.
- "difficultyLevel" is one of beginner, intermediate, advanced.
- "estimatedStudyTime" is a short human phrase such as "15 minutes".
- Never put double quotation marks inside text values. Use single quotes instead.

Content:
{{.content}}`

// Prompt renders the generation prompt for one chunk.
type Prompt struct {
	template prompts.PromptTemplate
}

// NewPrompt parses template. The {{.schema}} variable is bound to the
// PartialDocument schema; {{.content}} is filled per chunk.
func NewPrompt(template string) (*Prompt, error) {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	schema, err := DocumentSchema()
	if err != nil {
		return nil, err
	}

	tmpl := prompts.NewPromptTemplate(template, []string{"content"})
	tmpl.PartialVariables = map[string]any{"schema": schema}

	if _, err := tmpl.Format(map[string]any{"content": ""}); err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}
	return &Prompt{template: tmpl}, nil
}

// Render interpolates the chunk text into the template.
func (p *Prompt) Render(chunk models.Chunk) (string, error) {
	out, err := p.template.Format(map[string]any{"content": chunk.Text})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt for chunk %d: %w", chunk.Index, err)
	}
	return out, nil
}

// DocumentSchema returns the indented JSON Schema of models.PartialDocument.
func DocumentSchema() (string, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&models.PartialDocument{})
	schema.Version = ""
	schema.ID = ""

	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal document schema: %w", err)
	}
	return string(b), nil
}
