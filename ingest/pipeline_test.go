package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"docchat/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) Extract(data []byte) (string, error) {
	return s.text, s.err
}

type stubEmbedder struct {
	dim      int
	calls    int
	failAll  bool
	failWith string // fail any text containing this marker
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.failAll || (s.failWith != "" && strings.Contains(text, s.failWith)) {
		return nil, errors.New("embedding quota exceeded")
	}
	vec := make([]float32, s.dim)
	vec[0] = 1
	return vec, nil
}

func (s *stubEmbedder) Dimension() int { return s.dim }

type stubStore struct {
	upserts   [][]types.VectorRecord
	failBatch int // 1-based index of the upsert call that fails, 0 = never
}

func (s *stubStore) Upsert(ctx context.Context, records []types.VectorRecord) error {
	if s.failBatch > 0 && len(s.upserts)+1 == s.failBatch {
		return errors.New("connection reset")
	}
	s.upserts = append(s.upserts, records)
	return nil
}

func (s *stubStore) Search(ctx context.Context, embedding []float32, topK int) ([]types.RetrievalMatch, error) {
	return nil, nil
}

func (s *stubStore) Stats(ctx context.Context) (types.IndexStats, error) {
	return types.IndexStats{}, nil
}

func (s *stubStore) stored() int {
	n := 0
	for _, batch := range s.upserts {
		n += len(batch)
	}
	return n
}

func testConfig() *types.Config {
	return &types.Config{
		ChunkSize:       40,
		ChunkOverlap:    0,
		EmbedBatchSize:  5,
		EmbedBatchDelay: time.Second,
		UpsertBatchSize: 100,
		EmbedRetry:      types.RetryPolicy{MaxAttempts: 1},
		MaxStoredText:   2000,
	}
}

// paragraphs builds text that chunks into exactly n fragments under
// testConfig: each paragraph fits the target size alone but not together
// with the next one.
func paragraphs(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "paragraph number %02d with padding\n\n", i)
	}
	return sb.String()
}

func newTestPipeline(extractor *stubExtractor, embedder *stubEmbedder, storer *stubStore, cfg *types.Config) (*Pipeline, *[]time.Duration) {
	p := New(extractor, embedder, storer, cfg)
	sleeps := &[]time.Duration{}
	p.sleep = func(ctx context.Context, d time.Duration) {
		*sleeps = append(*sleeps, d)
	}
	return p, sleeps
}

func TestIngestRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 1000

	storer := &stubStore{}
	p, _ := newTestPipeline(
		&stubExtractor{text: "Alpha. Beta. Gamma."},
		&stubEmbedder{dim: 4},
		storer, cfg)

	outcome, err := p.Ingest(context.Background(), nil, "whitepaper.pdf")
	require.NoError(t, err)

	assert.Equal(t, types.IngestSuccess, outcome.Status)
	assert.Equal(t, 1, outcome.FragmentsTotal)
	assert.Equal(t, 1, outcome.VectorsStored)

	require.Equal(t, 1, storer.stored())
	record := storer.upserts[0][0]
	assert.Equal(t, "Alpha. Beta. Gamma.", record.Content)
	assert.Equal(t, 0, record.SequenceIndex)
	assert.Equal(t, 1, record.Page)
	assert.Equal(t, "whitepaper.pdf", record.Source)
	assert.NotEqual(t, record.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestIngestBatchPacing(t *testing.T) {
	cfg := testConfig()
	storer := &stubStore{}
	p, sleeps := newTestPipeline(
		&stubExtractor{text: paragraphs(7)},
		&stubEmbedder{dim: 4},
		storer, cfg)

	outcome, err := p.Ingest(context.Background(), nil, "doc.pdf")
	require.NoError(t, err)
	require.Equal(t, 7, outcome.FragmentsTotal)

	// 7 fragments in batches of 5: exactly one inter-batch pause.
	require.Len(t, *sleeps, 1)
	assert.Equal(t, cfg.EmbedBatchDelay, (*sleeps)[0])
}

func TestIngestSkipsFailedFragment(t *testing.T) {
	cfg := testConfig()
	storer := &stubStore{}

	text := paragraphs(6)
	text = strings.Replace(text, "number 03", "BROKEN 03", 1)

	p, _ := newTestPipeline(
		&stubExtractor{text: text},
		&stubEmbedder{dim: 4, failWith: "BROKEN"},
		storer, cfg)

	outcome, err := p.Ingest(context.Background(), nil, "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, 6, outcome.FragmentsTotal)
	assert.Equal(t, 5, outcome.VectorsProduced)
	assert.Equal(t, 5, outcome.VectorsStored)
	assert.Equal(t, types.IngestPartial, outcome.Status)
	assert.LessOrEqual(t, outcome.VectorsStored, outcome.FragmentsTotal)

	// The run still reached storage.
	require.Equal(t, 5, storer.stored())
}

func TestIngestAllEmbeddingsFail(t *testing.T) {
	cfg := testConfig()
	storer := &stubStore{}
	p, _ := newTestPipeline(
		&stubExtractor{text: paragraphs(3)},
		&stubEmbedder{dim: 4, failAll: true},
		storer, cfg)

	_, err := p.Ingest(context.Background(), nil, "doc.pdf")
	require.ErrorIs(t, err, types.ErrNoVectors)
	assert.Zero(t, storer.stored())
}

func TestIngestRetriesBeforeSkipping(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 1000
	cfg.EmbedRetry = types.RetryPolicy{MaxAttempts: 3, Delay: 100 * time.Millisecond}

	embedder := &stubEmbedder{dim: 4, failAll: true}
	p, sleeps := newTestPipeline(
		&stubExtractor{text: "only fragment"},
		embedder,
		&stubStore{},
		cfg)

	_, err := p.Ingest(context.Background(), nil, "doc.pdf")
	require.ErrorIs(t, err, types.ErrNoVectors)

	assert.Equal(t, 3, embedder.calls)
	// Backoff doubles between attempts.
	require.Len(t, *sleeps, 2)
	assert.Equal(t, 100*time.Millisecond, (*sleeps)[0])
	assert.Equal(t, 200*time.Millisecond, (*sleeps)[1])
}

func TestIngestStorageBatchFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.UpsertBatchSize = 5

	storer := &stubStore{failBatch: 2}
	p, _ := newTestPipeline(
		&stubExtractor{text: paragraphs(7)},
		&stubEmbedder{dim: 4},
		storer, cfg)

	outcome, err := p.Ingest(context.Background(), nil, "doc.pdf")

	var storageErr *types.StorageWriteError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, 2, storageErr.Batch)
	assert.Equal(t, 5, storageErr.Stored)

	// Only the first batch is durable.
	assert.Equal(t, 5, storer.stored())
	assert.Equal(t, 5, outcome.VectorsStored)
	assert.LessOrEqual(t, outcome.VectorsStored, outcome.FragmentsTotal)
}

func TestIngestExtractionFailure(t *testing.T) {
	cfg := testConfig()

	p, _ := newTestPipeline(
		&stubExtractor{err: errors.New("corrupt xref table")},
		&stubEmbedder{dim: 4},
		&stubStore{},
		cfg)

	_, err := p.Ingest(context.Background(), nil, "broken.pdf")

	var extractionErr *types.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "broken.pdf", extractionErr.Source)
}

func TestIngestEmptyExtractedText(t *testing.T) {
	cfg := testConfig()

	p, _ := newTestPipeline(
		&stubExtractor{text: "   \n "},
		&stubEmbedder{dim: 4},
		&stubStore{},
		cfg)

	_, err := p.Ingest(context.Background(), nil, "blank.pdf")

	var extractionErr *types.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.ErrorIs(t, err, types.ErrEmptyInput)
}

func TestIngestTruncatesStoredText(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 1000
	cfg.MaxStoredText = 10

	storer := &stubStore{}
	p, _ := newTestPipeline(
		&stubExtractor{text: "this text is longer than ten runes"},
		&stubEmbedder{dim: 4},
		storer, cfg)

	_, err := p.Ingest(context.Background(), nil, "doc.pdf")
	require.NoError(t, err)

	require.Equal(t, 1, storer.stored())
	assert.Equal(t, "this text ", storer.upserts[0][0].Content)
}
