package vector

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewVectorIndex_Memory(t *testing.T) {
	ctx := context.Background()
	idx, err := NewVectorIndex(ctx, Options{Type: "memory", Dimensions: 3})
	if err != nil {
		t.Fatalf("NewVectorIndex(memory): %v", err)
	}
	defer idx.Close()

	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Errorf("Count=%d, want 1", n)
	}
	if idx.Type() != "memory" {
		t.Errorf("Type=%s", idx.Type())
	}
}

func TestNewVectorIndex_PersistentMemory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "indices", "vectors")
	idx, err := NewVectorIndex(ctx, Options{Dimensions: 2, Path: path})
	if err != nil {
		t.Fatalf("NewVectorIndex: %v", err)
	}
	_ = idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot should exist: %v", err)
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	if _, err := NewVectorIndex(context.Background(), Options{Type: "unknown", Dimensions: 3}); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewVectorIndex_InvalidDimension(t *testing.T) {
	if _, err := NewVectorIndex(context.Background(), Options{Type: "memory"}); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestNewVectorIndex_PgVector(t *testing.T) {
	dsn := os.Getenv("REWIND_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("REWIND_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	idx, err := NewVectorIndex(ctx, Options{Type: "pgvector", Dimensions: 3, DSN: dsn})
	if err != nil {
		t.Fatalf("NewVectorIndex(pgvector): %v", err)
	}
	defer idx.Close()
	if err := idx.Reset(ctx); err != nil {
		t.Fatal(err)
	}

	var def string
	err = idx.(*PgVectorIndex).pool.QueryRow(ctx,
		`SELECT indexdef FROM pg_indexes WHERE indexname = 'frame_vectors_embedding_hnsw'`).Scan(&def)
	if err != nil {
		t.Fatalf("hnsw index missing: %v", err)
	}
	if !strings.Contains(def, "hnsw") || !strings.Contains(def, "vector_cosine_ops") {
		t.Errorf("unexpected index definition %q", def)
	}

	if err := idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{0, 0, 1}}); err != nil {
		t.Fatalf("Add (upsert): %v", err)
	}
	if n, _ := idx.Count(ctx); n != 2 {
		t.Errorf("Count=%d, want 2", n)
	}
	results, err := idx.Search(ctx, []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "a" || results[0].Score < 0.99 {
		t.Errorf("unexpected results: %+v", results)
	}
	if err := idx.Remove(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	ids, _ := idx.IDs(ctx)
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("IDs = %v", ids)
	}
	if err := idx.Reset(ctx); err != nil {
		t.Fatal(err)
	}
}
