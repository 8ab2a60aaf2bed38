package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"docchat/chunker"
	"docchat/extract"
	"docchat/model"
	"docchat/store"
	"docchat/types"

	"github.com/google/uuid"
)

// SleepFunc paces batches. Injected so tests run without real timers.
type SleepFunc func(ctx context.Context, d time.Duration)

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Pipeline drives extraction, chunking, batched embedding and batched
// storage for one document. Batch boundaries are serialization points:
// batch N+1 never starts before batch N and its pacing delay complete.
type Pipeline struct {
	extractor extract.TextExtractor
	chunker   *chunker.Chunker
	embedder  model.Embedder
	store     store.VectorStorer
	cfg       *types.Config
	sleep     SleepFunc
	logger    *slog.Logger
}

func New(extractor extract.TextExtractor, embedder model.Embedder, storer store.VectorStorer, cfg *types.Config) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder:  embedder,
		store:     storer,
		cfg:       cfg,
		sleep:     sleepCtx,
		logger:    slog.Default(),
	}
}

// Ingest runs the full pipeline for one document. Single-fragment
// embedding failures are logged and skipped; storage failures abort the
// run. A run that stores zero vectors returns ErrNoVectors, never an
// outcome.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, source string) (types.IngestionOutcome, error) {
	start := time.Now()

	text, err := p.extractor.Extract(data)
	if err != nil {
		return types.IngestionOutcome{}, &types.ExtractionError{Source: source, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return types.IngestionOutcome{}, &types.ExtractionError{Source: source, Err: types.ErrEmptyInput}
	}

	fragments, err := p.chunker.Split(text)
	if err != nil {
		return types.IngestionOutcome{}, err
	}
	p.logger.Info("document chunked", "source", source, "fragments", len(fragments))

	records, err := p.embedFragments(ctx, fragments, source)
	if err != nil {
		return types.IngestionOutcome{}, err
	}

	stored, err := p.storeRecords(ctx, records, source)
	if err != nil {
		return types.NewIngestionOutcome(source, len(fragments), len(records), stored), err
	}

	outcome := types.NewIngestionOutcome(source, len(fragments), len(records), stored)
	p.logger.Info("document ingested",
		"source", source,
		"status", outcome.Status,
		"fragments", outcome.FragmentsTotal,
		"stored", outcome.VectorsStored,
		"took", time.Since(start))
	return outcome, nil
}

// embedFragments processes fragments in fixed-size batches with a pause
// between batches to respect external rate limits. A fragment whose
// embedding fails is skipped; the run continues.
func (p *Pipeline) embedFragments(ctx context.Context, fragments []types.Fragment, source string) ([]types.VectorRecord, error) {
	batchSize := p.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	records := make([]types.VectorRecord, 0, len(fragments))
	for i := 0; i < len(fragments); i += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := i + batchSize
		if end > len(fragments) {
			end = len(fragments)
		}

		for _, frag := range fragments[i:end] {
			embedding, err := p.embedWithRetry(ctx, frag.Text)
			if err != nil {
				p.logger.Warn("embedding failed, skipping fragment",
					"source", source, "index", frag.SequenceIndex, "error", err)
				continue
			}

			records = append(records, types.VectorRecord{
				ID:            uuid.New(),
				Embedding:     embedding,
				Source:        source,
				Content:       truncateText(frag.Text, p.cfg.MaxStoredText),
				SequenceIndex: frag.SequenceIndex,
				Page:          types.ApproximatePage(frag.SequenceIndex),
			})
		}

		if end < len(fragments) {
			p.sleep(ctx, p.cfg.EmbedBatchDelay)
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("ingesting %q: %w", source, types.ErrNoVectors)
	}
	return records, nil
}

func (p *Pipeline) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	attempts := p.cfg.EmbedRetry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.cfg.EmbedRetry.Delay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		embedding, err := p.embedder.Embed(ctx, text)
		if err == nil && len(embedding) == 0 {
			err = fmt.Errorf("embedder returned an empty vector")
		}
		if err == nil {
			return embedding, nil
		}
		lastErr = err

		if attempt < attempts {
			p.sleep(ctx, delay)
			delay *= 2
		}
	}
	return nil, lastErr
}

// storeRecords upserts sequentially in fixed-size batches. The first
// failed batch is fatal: a partially stored document beyond what is
// already durable would be worse than none.
func (p *Pipeline) storeRecords(ctx context.Context, records []types.VectorRecord, source string) (int, error) {
	batchSize := p.cfg.UpsertBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	stored := 0
	batchNo := 0
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		batchNo++

		if err := p.store.Upsert(ctx, records[i:end]); err != nil {
			return stored, &types.StorageWriteError{
				Source: source,
				Batch:  batchNo,
				Stored: stored,
				Err:    err,
			}
		}
		stored += end - i

		if end < len(records) {
			p.sleep(ctx, p.cfg.UpsertBatchDelay)
		}
	}
	return stored, nil
}

// truncateText bounds stored fragment text without breaking runes.
func truncateText(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}
