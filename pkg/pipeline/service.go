package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/logger"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/internal/types"
)

// Request asks for study material generated from one source.
type Request struct {
	UserID     string
	SourceURL  string
	Thumbnail  *string
	OnProgress func(BatchProgress)
}

// Result is the outcome of a successful generation. MaterialID is empty when
// the service has no store or persisting failed.
type Result struct {
	MaterialID string
	Document   *models.StudyDocument
	Chunks     int
	Elapsed    time.Duration
}

// Service wires a content source, an orchestrator and an optional store.
type Service struct {
	source       types.ContentSource
	orchestrator *Orchestrator
	store        types.MaterialStore
	log          *logger.Logger
}

func NewService(source types.ContentSource, orchestrator *Orchestrator, store types.MaterialStore, log *logger.Logger) *Service {
	return &Service{
		source:       source,
		orchestrator: orchestrator,
		store:        store,
		log:          logger.OrNop(log),
	}
}

// Generate extracts the source, generates and merges its study material, and
// stores it. When storing fails the error is of kind Persistence and the
// returned Result still carries the document.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := s.log.With("source", req.SourceURL, "user", req.UserID)

	content, err := s.source.Extract(ctx, req.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errs.KindOf(err) != errs.KindUnknown {
			return nil, err
		}
		return nil, errs.New(errs.KindContentUnavailable, "extract", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, errs.Newf(errs.KindContentUnavailable, "extract", "no content found at %s", req.SourceURL)
	}
	log.Info("content extracted", "runes", len([]rune(content)))

	partials, err := s.orchestrator.RunWithProgress(ctx, content, req.OnProgress)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Document: Merge(partials),
		Chunks:   len(partials),
	}
	log.Info("study material generated",
		"chunks", res.Chunks,
		"summary", len(res.Document.Summary),
		"flashcards", len(res.Document.Flashcards),
		"quiz", len(res.Document.Quiz),
	)

	if s.store != nil {
		id, err := s.store.Store(ctx, req.UserID, req.SourceURL, res.Document, req.Thumbnail)
		if err != nil {
			res.Elapsed = time.Since(start)
			log.Error("failed to store study material", "error", err)
			return res, errs.New(errs.KindPersistence, "store", err)
		}
		res.MaterialID = id
	}

	res.Elapsed = time.Since(start)
	return res, nil
}
