package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "api_key is required for the openai provider",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unsupported provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.BaseURL != "" && !isHTTPURL(c.LLM.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 32768 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 32768",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.PromptTemplate != "" && !strings.Contains(c.LLM.PromptTemplate, "{{.content}}") {
		errors = append(errors, ValidationError{
			Field:   "llm.prompt_template",
			Message: "prompt_template must reference {{.content}}",
		})
	}

	// Validate Pipeline config
	if c.Pipeline.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Pipeline.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Pipeline.Pacing < 0 || c.Pipeline.InitialDelay < 0 || c.Pipeline.ServerErrorDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline",
			Message: "pacing and retry delays cannot be negative",
		})
	}

	if c.Pipeline.MaxRetries < -1 || c.Pipeline.MaxRepairRetries < -1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_retries",
			Message: "retry limits must be -1 (disabled) or more",
		})
	}

	// Validate Content config
	if c.Content.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "content.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Content.TranscriptURL != "" && !isHTTPURL(c.Content.TranscriptURL) {
		errors = append(errors, ValidationError{
			Field:   "content.transcript_url",
			Message: "invalid transcript service URL",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.SearchLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.search_limit",
			Message: "search_limit must be positive",
		})
	}

	// Validate Log config
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown log level: %s", c.Log.Level),
		})
	}

	return errors
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
