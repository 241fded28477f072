// Package pipeline turns source content into one merged study document:
// chunk, generate per chunk in bounded-concurrency batches, merge, persist.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/logger"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/internal/types"
	"github.com/Enchanted-Dev-stack/we-study/pkg/processor"
)

const DefaultPacing = time.Second

// BatchProgress is reported after every completed batch.
type BatchProgress struct {
	Batch      int // 1-based
	Batches    int
	ChunksDone int
	Chunks     int
}

type OrchestratorConfig struct {
	ChunkSize int
	BatchSize int
	// Pacing is the pause between consecutive batches.
	Pacing  time.Duration
	OnBatch func(BatchProgress)
}

// Orchestrator runs a Generator over every chunk of a content string. Chunks
// of one batch run concurrently on a pool of BatchSize workers; batches run
// one after another.
type Orchestrator struct {
	generator types.Generator
	processor processor.Processor
	pool      *ants.Pool
	config    OrchestratorConfig
	log       *logger.Logger
}

func NewOrchestrator(generator types.Generator, config OrchestratorConfig, log *logger.Logger) (*Orchestrator, error) {
	if generator == nil {
		return nil, errs.Newf(errs.KindInvalidConfiguration, "new orchestrator", "generator is required")
	}
	if config.ChunkSize < 0 || config.BatchSize < 0 || config.Pacing < 0 {
		return nil, errs.Newf(errs.KindInvalidConfiguration, "new orchestrator", "chunk size, batch size and pacing cannot be negative")
	}
	if config.Pacing == 0 {
		config.Pacing = DefaultPacing
	}

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize: config.ChunkSize,
		BatchSize: config.BatchSize,
	})
	config.ChunkSize = proc.Config().ChunkSize
	config.BatchSize = proc.Config().BatchSize

	pool, err := ants.NewPool(config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Orchestrator{
		generator: generator,
		processor: proc,
		pool:      pool,
		config:    config,
		log:       logger.OrNop(log),
	}, nil
}

func (o *Orchestrator) Config() OrchestratorConfig {
	return o.config
}

// Release releases the worker pool. The orchestrator must not be used afterwards.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}

// Run generates one PartialDocument per chunk, in chunk order.
func (o *Orchestrator) Run(ctx context.Context, content string) ([]*models.PartialDocument, error) {
	return o.RunWithProgress(ctx, content, nil)
}

// RunWithProgress is Run with an extra per-call progress callback, invoked
// after the configured OnBatch.
//
// Any failing chunk fails the whole run once the rest of its batch has
// finished. The error returned is the one of the lowest-index failing chunk.
func (o *Orchestrator) RunWithProgress(ctx context.Context, content string, onBatch func(BatchProgress)) ([]*models.PartialDocument, error) {
	batches, err := o.processor.Process(content)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, b := range batches {
		total += len(b)
	}
	results := make([]*models.PartialDocument, total)
	failures := make([]error, total)

	done := 0
	for bi, batch := range batches {
		if bi > 0 {
			if err := o.pace(ctx); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		o.runBatch(ctx, batch, results, failures)

		for _, ch := range batch {
			if failures[ch.Index] != nil {
				o.log.Error("chunk generation failed",
					"chunk", ch.Index,
					"batch", bi+1,
					"kind", errs.KindOf(failures[ch.Index]).String(),
					"error", failures[ch.Index],
				)
				return nil, failures[ch.Index]
			}
		}

		done += len(batch)
		progress := BatchProgress{Batch: bi + 1, Batches: len(batches), ChunksDone: done, Chunks: total}
		o.log.Info("batch complete", "batch", progress.Batch, "batches", progress.Batches, "chunks", done)
		if o.config.OnBatch != nil {
			o.config.OnBatch(progress)
		}
		if onBatch != nil {
			onBatch(progress)
		}
	}

	return results, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, batch models.Batch, results []*models.PartialDocument, failures []error) {
	var wg sync.WaitGroup
	for _, ch := range batch {
		ch := ch
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[ch.Index] = nil
					failures[ch.Index] = errs.Newf(errs.KindUnretryable, "generate", "chunk %d panicked: %v", ch.Index, r)
				}
			}()
			doc, err := o.generator.Generate(ctx, ch)
			if err == nil && doc == nil {
				err = errs.Newf(errs.KindMalformedResponse, "generate", "no document for chunk %d", ch.Index)
			}
			results[ch.Index] = doc
			failures[ch.Index] = err
		})
		if err != nil {
			wg.Done()
			failures[ch.Index] = fmt.Errorf("failed to schedule chunk %d: %w", ch.Index, err)
		}
	}
	wg.Wait()
}

func (o *Orchestrator) pace(ctx context.Context) error {
	timer := time.NewTimer(o.config.Pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
