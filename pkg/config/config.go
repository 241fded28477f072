package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider        string  `yaml:"provider"`
		BaseURL         string  `yaml:"base_url"`
		Model           string  `yaml:"model"`
		APIKey          string  `yaml:"api_key"`
		MaxTokens       int     `yaml:"max_tokens"`
		Temperature     float64 `yaml:"temperature"`
		DisableJSONMode bool    `yaml:"disable_json_mode"`
		EmbeddingModel  string  `yaml:"embedding_model"`
		PromptTemplate  string  `yaml:"prompt_template"`
	} `yaml:"llm"`

	Pipeline struct {
		ChunkSize        int           `yaml:"chunk_size"`
		BatchSize        int           `yaml:"batch_size"`
		Pacing           time.Duration `yaml:"pacing"`
		// Retry budgets: 0 uses the default, -1 disables retries.
		MaxRetries       int           `yaml:"max_retries"`
		InitialDelay     time.Duration `yaml:"initial_delay"`
		ServerErrorDelay time.Duration `yaml:"server_error_delay"`
		MaxRepairRetries int           `yaml:"max_repair_retries"`
	} `yaml:"pipeline"`

	Content struct {
		RateLimit      float64       `yaml:"rate_limit"`
		Timeout        time.Duration `yaml:"timeout"`
		UserAgent      string        `yaml:"user_agent"`
		IgnorePatterns []string      `yaml:"ignore_patterns"`
		TranscriptURL  string        `yaml:"transcript_url"`
		Language       string        `yaml:"language"`
	} `yaml:"content"`

	Database struct {
		URL         string `yaml:"url"`
		TableName   string `yaml:"table_name"`
		VectorDim   int    `yaml:"vector_dim"`
		SearchLimit int    `yaml:"search_limit"`
	} `yaml:"database"`

	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Mode  string `yaml:"mode"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/westudy/config.yaml"),
			"/etc/westudy/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == "openai" {
			config.LLM.Model = "gpt-4o-mini"
		} else {
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 4096
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}

	if config.Pipeline.ChunkSize == 0 {
		config.Pipeline.ChunkSize = 4000
	}
	if config.Pipeline.BatchSize == 0 {
		config.Pipeline.BatchSize = 3
	}
	if config.Pipeline.Pacing == 0 {
		config.Pipeline.Pacing = time.Second
	}
	if config.Pipeline.MaxRetries == 0 {
		config.Pipeline.MaxRetries = 5
	}
	if config.Pipeline.InitialDelay == 0 {
		config.Pipeline.InitialDelay = 10 * time.Second
	}
	if config.Pipeline.ServerErrorDelay == 0 {
		config.Pipeline.ServerErrorDelay = 15 * time.Second
	}
	if config.Pipeline.MaxRepairRetries == 0 {
		config.Pipeline.MaxRepairRetries = 2
	}

	if config.Content.RateLimit == 0 {
		config.Content.RateLimit = 2.0
	}
	if config.Content.Timeout == 0 {
		config.Content.Timeout = 30 * time.Second
	}
	if config.Content.Language == "" {
		config.Content.Language = "en"
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "study_materials"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.SearchLimit == 0 {
		config.Database.SearchLimit = 5
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if config.Log.Mode == "" {
		config.Log.Mode = "dev"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && config.LLM.Provider != "openai" {
		config.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" && config.LLM.Provider == "openai" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if transcriptURL := os.Getenv("TRANSCRIPT_SERVICE_URL"); transcriptURL != "" {
		config.Content.TranscriptURL = transcriptURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}
