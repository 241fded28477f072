package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ProviderConfig represents the configuration for a text-generation provider.
type ProviderConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// LangChainProvider sends single-prompt completions to any langchaingo model.
type LangChainProvider struct {
	config ProviderConfig
	llm    llms.Model
}

// NewProvider creates the provider named by config.Provider.
func NewProvider(config ProviderConfig) (*LangChainProvider, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}

	var (
		model llms.Model
		err   error
	)
	switch config.Provider {
	case ProviderOllama:
		model, err = newOllama(&config)
	case ProviderOpenAI:
		model, err = newOpenAI(&config)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return NewLangChainProvider(model, config), nil
}

// NewLangChainProvider wraps an already constructed model.
func NewLangChainProvider(model llms.Model, config ProviderConfig) *LangChainProvider {
	return &LangChainProvider{config: config, llm: model}
}

func newOllama(config *ProviderConfig) (llms.Model, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	opts := []ollama.Option{
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	}
	if config.JSONMode {
		opts = append(opts, ollama.WithFormat("json"))
	}
	return ollama.New(opts...)
}

func newOpenAI(config *ProviderConfig) (llms.Model, error) {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	opts := []openai.Option{openai.WithModel(config.Model)}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}
	return openai.New(opts...)
}

// Config returns the effective configuration after defaults were applied.
func (p *LangChainProvider) Config() ProviderConfig {
	return p.config
}

// Complete sends prompt as a single human message and returns the first choice.
func (p *LangChainProvider) Complete(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(p.config.Temperature),
		llms.WithMaxTokens(p.config.MaxTokens),
	}
	if p.config.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := p.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errs.Newf(errs.KindMalformedResponse, "complete", "empty response from %s", p.config.Provider)
	}
	return resp.Choices[0].Content, nil
}
