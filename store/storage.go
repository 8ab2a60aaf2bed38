package store

import (
	"context"
	"fmt"
	"log/slog"

	"docchat/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorStorer is the persistence capability the pipelines depend on.
// Implementations own the persisted records and provide their own
// concurrency safety for concurrent upserts and searches.
type VectorStorer interface {
	Upsert(ctx context.Context, records []types.VectorRecord) error
	Search(ctx context.Context, embedding []float32, topK int) ([]types.RetrievalMatch, error)
	Stats(ctx context.Context) (types.IndexStats, error)
}

type PostgresStore struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, dimension int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:      pool,
		dimension: dimension,
		logger:    slog.Default(),
	}, nil
}

// Upsert writes one batch of records inside a transaction, so a failed
// batch leaves no rows behind. Records are visible to searches only after
// the commit.
func (p *PostgresStore) Upsert(ctx context.Context, records []types.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Embedding) != p.dimension {
			return &types.DimensionError{Want: p.dimension, Got: len(r.Embedding)}
		}
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
    INSERT INTO fragments (id, source, content, seq, page, embedding)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (id) DO UPDATE SET
        source = EXCLUDED.source,
        content = EXCLUDED.content,
        seq = EXCLUDED.seq,
        page = EXCLUDED.page,
        embedding = EXCLUDED.embedding
    `
	for _, r := range records {
		if _, err := tx.Exec(ctx, query,
			r.ID, r.Source, r.Content, r.SequenceIndex, r.Page, pgvector.NewVector(r.Embedding),
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Search returns the top-K nearest fragments by cosine similarity,
// best first.
func (p *PostgresStore) Search(ctx context.Context, embedding []float32, topK int) ([]types.RetrievalMatch, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}
	if len(embedding) != p.dimension {
		return nil, &types.DimensionError{Want: p.dimension, Got: len(embedding)}
	}

	vector := pgvector.NewVector(embedding)

	query := `
		SELECT f.id, f.source, f.content, f.seq, f.page,
		       1 - (f.embedding <=> $1) AS score
		FROM fragments f
		WHERE f.embedding IS NOT NULL
		ORDER BY f.embedding <=> $1
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, vector, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []types.RetrievalMatch
	for rows.Next() {
		var m types.RetrievalMatch
		if err := rows.Scan(&m.ID, &m.Source, &m.Content, &m.SequenceIndex, &m.Page, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Stats is the connectivity probe. Not part of the hot path.
func (p *PostgresStore) Stats(ctx context.Context) (types.IndexStats, error) {
	var count int64
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM fragments").Scan(&count); err != nil {
		return types.IndexStats{}, err
	}
	return types.IndexStats{Fragments: count, Dimension: p.dimension}, nil
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
    CREATE EXTENSION IF NOT EXISTS vector;

    CREATE TABLE IF NOT EXISTS fragments (
        id UUID PRIMARY KEY,
        source TEXT NOT NULL,
        content TEXT NOT NULL,
        seq INT NOT NULL,
        page INT NOT NULL,
        embedding vector(%d)
    );

	CREATE INDEX IF NOT EXISTS idx_fragments_embedding ON fragments USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_fragments_source ON fragments(source);
    `, p.dimension)
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool closed")
	}
	return nil
}
