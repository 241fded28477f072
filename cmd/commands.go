package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/logger"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/internal/types"
	cfgPkg "github.com/Enchanted-Dev-stack/we-study/pkg/config"
	"github.com/Enchanted-Dev-stack/we-study/pkg/content"
	"github.com/Enchanted-Dev-stack/we-study/pkg/llm"
	"github.com/Enchanted-Dev-stack/we-study/pkg/pipeline"
	"github.com/Enchanted-Dev-stack/we-study/pkg/store"
	"github.com/Enchanted-Dev-stack/we-study/server"
)

// loadConfig reads the config file and lets command line flags override it.
func loadConfig(c *cli.Context) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	applyFlags(c, cfg)

	if problems := cfg.Validate(); len(problems) > 0 {
		msgs := make([]string, 0, len(problems))
		for _, p := range problems {
			msgs = append(msgs, p.Error())
		}
		return nil, errs.Newf(errs.KindInvalidConfiguration, "load config", "%s", strings.Join(msgs, "; "))
	}
	return cfg, nil
}

func applyFlags(c *cli.Context, cfg *cfgPkg.Config) {
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-mode") {
		cfg.Log.Mode = c.String("log-mode")
	}
	if c.IsSet("provider") {
		cfg.LLM.Provider = c.String("provider")
	}
	if c.IsSet("model") {
		cfg.LLM.Model = c.String("model")
	}
	if c.IsSet("base-url") {
		cfg.LLM.BaseURL = c.String("base-url")
	}
	if c.IsSet("temperature") {
		cfg.LLM.Temperature = c.Float64("temperature")
	}
	if c.IsSet("chunk-size") {
		cfg.Pipeline.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("batch-size") {
		cfg.Pipeline.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("pacing") {
		cfg.Pipeline.Pacing = c.Duration("pacing")
	}
	if c.IsSet("max-retries") {
		cfg.Pipeline.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("transcript-url") {
		cfg.Content.TranscriptURL = c.String("transcript-url")
	}
	if c.IsSet("db-url") {
		cfg.Database.URL = c.String("db-url")
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("limit") {
		cfg.Database.SearchLimit = c.Int("limit")
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func generateCommand(c *cli.Context) error {
	url := c.Args().First()
	if url == "" {
		return fmt.Errorf("a video or page URL is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("no-store") {
		cfg.Database.URL = ""
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	p, err := newPipeline(ctx, cfg, log, func(ev llm.RetryEvent) {
		color.Yellow("\n⟳ chunk %d: %s, retry %d in %s", ev.Chunk+1, ev.Kind, ev.Attempt, ev.Delay)
	})
	if err != nil {
		return err
	}
	defer p.Close()

	color.Blue("\nGenerating study material for %s\n", url)
	bar := getProgressBar(-1, "📚 Generating...")

	var thumbnail *string
	if t := c.String("thumbnail"); t != "" {
		thumbnail = &t
	}
	res, err := p.service.Generate(ctx, pipeline.Request{
		UserID:    c.String("user"),
		SourceURL: url,
		Thumbnail: thumbnail,
		OnProgress: func(pr pipeline.BatchProgress) {
			if pr.Batch == 1 {
				bar.ChangeMax(pr.Chunks)
			}
			_ = bar.Set(pr.ChunksDone)
			bar.Describe(color.BlueString("📚 Generating... (batch %d/%d)", pr.Batch, pr.Batches))
		},
	})
	_ = bar.Finish()
	fmt.Println()

	if err != nil && (res == nil || res.Document == nil) {
		color.Red("✗ %s\n", errs.UserMessage(errs.KindOf(err)))
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res.Document); encErr != nil {
			return encErr
		}
	} else {
		printDocument(c.App.Writer, res.Document)
	}

	if err != nil {
		color.Red("✗ %s\n", errs.UserMessage(errs.KindOf(err)))
		return err
	}
	if res.MaterialID != "" {
		color.Green("✓ Stored as %s (%d chunks in %s)\n", res.MaterialID, res.Chunks, res.Elapsed.Round(time.Millisecond))
	} else {
		color.Green("✓ Generated from %d chunks in %s\n", res.Chunks, res.Elapsed.Round(time.Millisecond))
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	p, err := newPipeline(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	var searcher server.Searcher
	if p.store != nil {
		searcher = p.store
	}
	srv, err := server.NewWSServer(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, p.service, searcher, log)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	user := c.String("user")
	if query == "" && user == "" {
		return fmt.Errorf("a search query or --user is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errs.Newf(errs.KindInvalidConfiguration, "search", "database url is required")
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	var embedder types.Embedder
	if query != "" {
		if embedder, err = newEmbedder(cfg); err != nil {
			return err
		}
	}
	st, err := store.NewWithConfig(c.Context, storeConfig(cfg), embedder, log)
	if err != nil {
		return err
	}
	defer st.Close()

	spinner := getSpinner("🔍 Searching study materials...")
	var materials []models.Material
	if query == "" {
		materials, err = st.ListByUser(c.Context, user, cfg.Database.SearchLimit)
	} else {
		materials, err = st.Similar(c.Context, query, cfg.Database.SearchLimit)
	}
	_ = spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	printMaterials(c.App.Writer, materials)
	return nil
}

// components is the wired generation pipeline.
type components struct {
	service      *pipeline.Service
	orchestrator *pipeline.Orchestrator
	store        *store.MaterialStore
}

func (p *components) Close() {
	p.orchestrator.Release()
	if p.store != nil {
		p.store.Close()
	}
}

func newPipeline(ctx context.Context, cfg *cfgPkg.Config, log *logger.Logger, onRetry func(llm.RetryEvent)) (*components, error) {
	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		JSONMode:    !cfg.LLM.DisableJSONMode,
	})
	if err != nil {
		return nil, errs.New(errs.KindInvalidConfiguration, "new provider", err)
	}
	prompt, err := llm.NewPrompt(cfg.LLM.PromptTemplate)
	if err != nil {
		return nil, errs.New(errs.KindInvalidConfiguration, "new prompt", err)
	}
	client, err := llm.NewClient(provider, prompt, llm.ClientConfig{
		MaxRetries:       cfg.Pipeline.MaxRetries,
		InitialDelay:     cfg.Pipeline.InitialDelay,
		ServerErrorDelay: cfg.Pipeline.ServerErrorDelay,
		MaxRepairRetries: cfg.Pipeline.MaxRepairRetries,
		OnRetry:          onRetry,
	}, log)
	if err != nil {
		return nil, err
	}

	orchestrator, err := pipeline.NewOrchestrator(client, pipeline.OrchestratorConfig{
		ChunkSize: cfg.Pipeline.ChunkSize,
		BatchSize: cfg.Pipeline.BatchSize,
		Pacing:    cfg.Pipeline.Pacing,
	}, log)
	if err != nil {
		return nil, err
	}

	source, err := newContentSource(cfg, log)
	if err != nil {
		orchestrator.Release()
		return nil, err
	}

	p := &components{orchestrator: orchestrator}
	var materials types.MaterialStore
	if cfg.Database.URL != "" {
		embedder, err := newEmbedder(cfg)
		if err != nil {
			log.Warn("similarity search disabled", "error", err)
		}
		if p.store, err = store.NewWithConfig(ctx, storeConfig(cfg), embedder, log); err != nil {
			orchestrator.Release()
			return nil, err
		}
		materials = p.store
	}

	p.service = pipeline.NewService(source, orchestrator, materials, log)
	return p, nil
}

func newContentSource(cfg *cfgPkg.Config, log *logger.Logger) (types.ContentSource, error) {
	pages := content.NewPageSource(content.PageConfig{
		RateLimit:      cfg.Content.RateLimit,
		Timeout:        cfg.Content.Timeout,
		UserAgent:      cfg.Content.UserAgent,
		IgnorePatterns: cfg.Content.IgnorePatterns,
	}, log)

	if cfg.Content.TranscriptURL == "" {
		log.Warn("no transcript service configured, video URLs are unsupported")
		return content.NewRouter(nil, pages), nil
	}
	transcripts, err := content.NewTranscriptSource(content.TranscriptConfig{
		BaseURL:  cfg.Content.TranscriptURL,
		Language: cfg.Content.Language,
		Timeout:  cfg.Content.Timeout,
	}, log)
	if err != nil {
		return nil, err
	}
	return content.NewRouter(transcripts, pages), nil
}

// newEmbedder returns a nil interface when the embedder cannot be built, so
// the store keeps working without vectors.
func newEmbedder(cfg *cfgPkg.Config) (types.Embedder, error) {
	baseURL := ""
	if cfg.LLM.Provider == llm.ProviderOllama {
		baseURL = cfg.LLM.BaseURL
	}
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.LLM.EmbeddingModel,
		BaseURL: baseURL,
	})
	if err != nil {
		return nil, err
	}
	return emb, nil
}

func storeConfig(cfg *cfgPkg.Config) store.MaterialStoreConfig {
	return store.MaterialStoreConfig{
		ConnString:  cfg.Database.URL,
		TableName:   cfg.Database.TableName,
		VectorDim:   cfg.Database.VectorDim,
		SearchLimit: cfg.Database.SearchLimit,
	}
}
