package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorIndex stores vectors in PostgreSQL using the pgvector extension.
// Similarity is cosine: 1 - (embedding <=> query).
type PgVectorIndex struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPgVectorIndex connects to dsn, verifies the connection and creates the table if needed.
func NewPgVectorIndex(ctx context.Context, dsn string, dimensions int) (*PgVectorIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	idx := &PgVectorIndex{pool: pool, dimensions: dimensions}
	if err := idx.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (p *PgVectorIndex) initSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS frame_vectors (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, p.dimensions))
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS frame_vectors_embedding_hnsw
		ON frame_vectors USING hnsw (embedding vector_cosine_ops)`)
	return err
}

// Type returns the index type identifier.
func (p *PgVectorIndex) Type() string {
	return string(IndexTypePgVector)
}

// Add upserts vectors keyed by ID in one batch.
func (p *PgVectorIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	batch := &pgx.Batch{}
	for i, id := range ids {
		if len(vectors[i]) != p.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), p.dimensions)
		}
		batch.Queue(`
			INSERT INTO frame_vectors (id, embedding, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()`,
			id, pgvector.NewVector(vectors[i]))
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

// Search returns the k nearest vectors by cosine distance.
func (p *PgVectorIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != p.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), p.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM frame_vectors
		ORDER BY embedding <=> $1, id
		LIMIT $2`,
		pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	defer rows.Close()

	var results []*VectorResult
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.ID, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// Remove deletes vectors by ID.
func (p *PgVectorIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM frame_vectors WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("failed to remove vectors: %w", err)
	}
	return nil
}

// Reset removes every vector.
func (p *PgVectorIndex) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `TRUNCATE frame_vectors`); err != nil {
		return fmt.Errorf("failed to truncate vectors: %w", err)
	}
	return nil
}

// IDs returns every stored ID.
func (p *PgVectorIndex) IDs(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM frame_vectors`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Count returns the number of stored vectors.
func (p *PgVectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM frame_vectors`).Scan(&n)
	return n, err
}

// Close closes the connection pool.
func (p *PgVectorIndex) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
