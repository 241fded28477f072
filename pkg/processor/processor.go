package processor

import (
	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
)

const (
	DefaultChunkSize = 4000
	DefaultBatchSize = 3
)

type ProcessorConfig struct {
	ChunkSize int // max runes per chunk
	BatchSize int // max chunks generated concurrently
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}

	return Processor{
		config: config,
	}
}

func (p Processor) Config() ProcessorConfig {
	return p.config
}

// Process splits content into chunks and groups them into batches.
func (p Processor) Process(content string) ([]models.Batch, error) {
	chunks, err := Chunk(content, p.config.ChunkSize)
	if err != nil {
		return nil, err
	}
	return Batch(chunks, p.config.BatchSize)
}

// Chunk splits content into consecutive pieces of at most maxLen runes.
// Concatenating the chunk texts yields content exactly.
func Chunk(content string, maxLen int) ([]models.Chunk, error) {
	if maxLen <= 0 {
		return nil, errs.Newf(errs.KindInvalidConfiguration, "processor.chunk", "chunk size must be positive, got %d", maxLen)
	}

	chunks := make([]models.Chunk, 0, len(content)/maxLen+1)
	start, runes := 0, 0
	for i := range content {
		if runes == maxLen {
			chunks = append(chunks, models.Chunk{Index: len(chunks), Text: content[start:i]})
			start, runes = i, 0
		}
		runes++
	}
	if start < len(content) {
		chunks = append(chunks, models.Chunk{Index: len(chunks), Text: content[start:]})
	}

	return chunks, nil
}

// Batch groups chunks into ordered batches of at most size chunks.
func Batch(chunks []models.Chunk, size int) ([]models.Batch, error) {
	if size <= 0 {
		return nil, errs.Newf(errs.KindInvalidConfiguration, "processor.batch", "batch size must be positive, got %d", size)
	}

	batches := make([]models.Batch, 0, (len(chunks)+size-1)/size)
	for i := 0; i < len(chunks); i += size {
		end := i + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, models.Batch(chunks[i:end:end]))
	}

	return batches, nil
}
