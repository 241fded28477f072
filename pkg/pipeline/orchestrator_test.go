package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/mock"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/pkg/pipeline"
)

func newOrchestrator(t *testing.T, gen *mock.MockGenerator, cfg pipeline.OrchestratorConfig) *pipeline.Orchestrator {
	t.Helper()
	if cfg.Pacing == 0 {
		cfg.Pacing = time.Millisecond
	}
	o, err := pipeline.NewOrchestrator(gen, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(o.Release)
	return o
}

func TestNewOrchestrator(t *testing.T) {
	o, err := pipeline.NewOrchestrator(mock.NewMockGenerator(), pipeline.OrchestratorConfig{}, nil)
	require.NoError(t, err)
	defer o.Release()

	cfg := o.Config()
	assert.Equal(t, 4000, cfg.ChunkSize)
	assert.Equal(t, 3, cfg.BatchSize)
	assert.Equal(t, pipeline.DefaultPacing, cfg.Pacing)

	_, err = pipeline.NewOrchestrator(nil, pipeline.OrchestratorConfig{}, nil)
	assert.True(t, errors.Is(err, errs.InvalidConfiguration))

	_, err = pipeline.NewOrchestrator(mock.NewMockGenerator(), pipeline.OrchestratorConfig{BatchSize: -1}, nil)
	assert.True(t, errors.Is(err, errs.InvalidConfiguration))
}

func TestRun_PreservesChunkOrder(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(_ context.Context, ch models.Chunk) (*models.PartialDocument, error) {
		// later chunks of a batch finish first
		time.Sleep(time.Duration(5-ch.Index%3) * time.Millisecond)
		return &models.PartialDocument{Summary: []string{ch.Text}}, nil
	}
	o := newOrchestrator(t, gen, pipeline.OrchestratorConfig{ChunkSize: 2, BatchSize: 3})

	results, err := o.Run(context.Background(), "aabbccddeeffg")
	require.NoError(t, err)
	require.Len(t, results, 7)

	var texts []string
	for _, r := range results {
		texts = append(texts, r.Summary[0])
	}
	assert.Equal(t, "aabbccddeeffg", strings.Join(texts, ""))
	assert.Equal(t, 7, gen.CallCount())
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	finished := map[int]time.Time{}
	started := map[int]time.Time{}

	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(_ context.Context, ch models.Chunk) (*models.PartialDocument, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		started[ch.Index] = time.Now()
		mu.Unlock()

		time.Sleep(3 * time.Millisecond)

		mu.Lock()
		finished[ch.Index] = time.Now()
		mu.Unlock()
		inFlight.Add(-1)
		return &models.PartialDocument{}, nil
	}
	o := newOrchestrator(t, gen, pipeline.OrchestratorConfig{ChunkSize: 1, BatchSize: 2})

	_, err := o.Run(context.Background(), "abcde")
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	// every chunk of batch b finishes before any chunk of batch b+1 starts
	for next := 2; next < 5; next++ {
		prevBatch := next/2*2 - 2
		for i := prevBatch; i < prevBatch+2; i++ {
			assert.False(t, started[next].Before(finished[i]), "chunk %d started before chunk %d finished", next, i)
		}
	}
}

func TestRun_FailureReportsLowestIndex(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(_ context.Context, ch models.Chunk) (*models.PartialDocument, error) {
		switch ch.Index {
		case 1:
			time.Sleep(5 * time.Millisecond)
			return nil, errs.Newf(errs.KindRateLimited, "generate", "chunk 1")
		case 2:
			return nil, errs.Newf(errs.KindMalformedResponse, "generate", "chunk 2")
		}
		return &models.PartialDocument{}, nil
	}
	var progress []pipeline.BatchProgress
	o := newOrchestrator(t, gen, pipeline.OrchestratorConfig{
		ChunkSize: 1,
		BatchSize: 3,
		OnBatch:   func(p pipeline.BatchProgress) { progress = append(progress, p) },
	})

	results, err := o.Run(context.Background(), "abcdef")
	assert.Nil(t, results)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.RateLimited))
	assert.Equal(t, 3, gen.CallCount(), "siblings finish, later batches never start")
	assert.Empty(t, progress)
}

func TestRun_BrokenGeneratorFailsRun(t *testing.T) {
	tests := []struct {
		name     string
		generate func(models.Chunk) (*models.PartialDocument, error)
		kind     error
		message  string
	}{
		{
			name: "panic",
			generate: func(ch models.Chunk) (*models.PartialDocument, error) {
				if ch.Index == 1 {
					panic("boom")
				}
				return &models.PartialDocument{Summary: []string{ch.Text}}, nil
			},
			kind:    errs.Unretryable,
			message: "chunk 1 panicked: boom",
		},
		{
			name: "no document",
			generate: func(ch models.Chunk) (*models.PartialDocument, error) {
				if ch.Index == 1 {
					return nil, nil
				}
				return &models.PartialDocument{Summary: []string{ch.Text}}, nil
			},
			kind:    errs.MalformedResponse,
			message: "no document for chunk 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := mock.NewMockGenerator()
			gen.GenerateFunc = func(_ context.Context, ch models.Chunk) (*models.PartialDocument, error) {
				return tt.generate(ch)
			}
			var progress []pipeline.BatchProgress
			o := newOrchestrator(t, gen, pipeline.OrchestratorConfig{
				ChunkSize: 2,
				BatchSize: 2,
				OnBatch:   func(p pipeline.BatchProgress) { progress = append(progress, p) },
			})

			results, err := o.Run(context.Background(), "A.B.C.")
			assert.Nil(t, results)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind))
			assert.Contains(t, err.Error(), tt.message)
			assert.Equal(t, 2, gen.CallCount())
			assert.Empty(t, progress)
		})
	}
}

func TestRun_Progress(t *testing.T) {
	var progress []pipeline.BatchProgress
	var perCall int
	o := newOrchestrator(t, mock.NewMockGenerator(), pipeline.OrchestratorConfig{
		ChunkSize: 2,
		BatchSize: 2,
		OnBatch:   func(p pipeline.BatchProgress) { progress = append(progress, p) },
	})

	_, err := o.RunWithProgress(context.Background(), "aabbccddee", func(pipeline.BatchProgress) { perCall++ })
	require.NoError(t, err)
	assert.Equal(t, []pipeline.BatchProgress{
		{Batch: 1, Batches: 3, ChunksDone: 2, Chunks: 5},
		{Batch: 2, Batches: 3, ChunksDone: 4, Chunks: 5},
		{Batch: 3, Batches: 3, ChunksDone: 5, Chunks: 5},
	}, progress)
	assert.Equal(t, 3, perCall)
}

func TestRun_CancelDuringPacing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := mock.NewMockGenerator()
	o := newOrchestrator(t, gen, pipeline.OrchestratorConfig{
		ChunkSize: 1,
		BatchSize: 2,
		Pacing:    time.Hour,
		OnBatch:   func(pipeline.BatchProgress) { cancel() },
	})

	start := time.Now()
	_, err := o.Run(ctx, "abcd")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 2, gen.CallCount())
}

func TestRun_EmptyContent(t *testing.T) {
	gen := mock.NewMockGenerator()
	o := newOrchestrator(t, gen, pipeline.OrchestratorConfig{})

	results, err := o.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, gen.CallCount())
}
