// Package vector provides the vector store for visual embeddings and similarity search.
package vector

import "context"

// VectorIndex defines vector storage and similarity search. Vectors are keyed by record ID;
// adding an existing ID replaces its vector so retries are idempotent.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	// Reset removes every vector.
	Reset(ctx context.Context) error
	IDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Type() string
	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID    string
	Score float64 // cosine similarity for normalized vectors
}
