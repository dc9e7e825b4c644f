// Package vector provides vector index implementations and a factory for creating them.
package vector

import (
	"context"
	"fmt"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-process brute-force search backed by a snapshot and an append log.
	IndexTypeMemory IndexType = "memory"
	// IndexTypePgVector stores vectors in PostgreSQL with the pgvector extension.
	IndexTypePgVector IndexType = "pgvector"
)

// Options configures NewVectorIndex.
type Options struct {
	Type       string
	Dimensions int
	// Path is the snapshot file for the memory index; empty keeps it purely in memory.
	Path string
	// DSN is the PostgreSQL connection string for pgvector.
	DSN string
}

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "pgvector".
func NewVectorIndex(ctx context.Context, opts Options) (VectorIndex, error) {
	switch IndexType(opts.Type) {
	case IndexTypeMemory, "":
		if opts.Path == "" {
			return NewMemoryIndex(opts.Dimensions)
		}
		return OpenMemoryIndex(opts.Path, opts.Dimensions)
	case IndexTypePgVector:
		return NewPgVectorIndex(ctx, opts.DSN, opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, pgvector)", opts.Type)
	}
}
