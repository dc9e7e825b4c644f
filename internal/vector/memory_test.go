package vector

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}

	if _, err := idx.Search(ctx, []float32{1, 0}, 2); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestMemoryIndex_AddReplacesExistingID(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, []string{"x"}, [][]float32{{0, 1}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Fatalf("re-adding an id should replace, size=%d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if results[0].Score < 0.99 {
		t.Errorf("vector was not replaced, score=%f", results[0].Score)
	}
}

func TestMemoryIndex_RemoveAndReset(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y", "z"}, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err := idx.Remove(ctx, []string{"x", "unknown"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("expected size 2, got %d", idx.Size())
	}
	ids, _ := idx.IDs(ctx)
	for _, id := range ids {
		if id == "x" {
			t.Error("removed id still listed")
		}
	}
	// swap-delete must keep positions consistent
	if err := idx.Remove(ctx, []string{"z"}); err != nil {
		t.Fatal(err)
	}
	results, _ := idx.Search(ctx, []float32{0, 1}, 5)
	if len(results) != 1 || results[0].ID != "y" {
		t.Errorf("unexpected results after removals: %v", results)
	}

	if err := idx.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := idx.Count(ctx)
	if n != 0 {
		t.Errorf("expected empty index after reset, got %d", n)
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	ctx := context.Background()
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d", loaded.Size())
	}
	results, _ := loaded.Search(ctx, []float32{0, 1}, 1)
	if results[0].ID != "b" {
		t.Errorf("top = %s, want b", results[0].ID)
	}

	wrongDim, _ := NewMemoryIndex(3)
	if err := wrongDim.Load(path); err == nil {
		t.Error("expected dimension mismatch on load")
	}
}

func TestOpenMemoryIndex_ReplaysLogAfterCrash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	ctx := context.Background()

	idx, err := OpenMemoryIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Add(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	_ = idx.Remove(ctx, []string{"b"})
	// simulate a crash: drop the handle without compacting
	_ = idx.log.Close()

	reopened, err := OpenMemoryIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if reopened.Size() != 2 {
		t.Fatalf("replayed size = %d, want 2", reopened.Size())
	}
	ids, _ := reopened.IDs(ctx)
	for _, id := range ids {
		if id == "b" {
			t.Error("removed id came back after replay")
		}
	}
}

func TestOpenMemoryIndex_TruncatesTornEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	ctx := context.Background()

	idx, err := OpenMemoryIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	_ = idx.log.Close()

	// half-written add entry
	f, err := os.OpenFile(logPath(path), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	torn := appendEntry(nil, opAdd, "b", []float32{0, 1})
	_, _ = f.Write(torn[:len(torn)-3])
	_ = f.Close()

	reopened, err := OpenMemoryIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Size() != 1 {
		t.Errorf("torn entry should be ignored, size=%d", reopened.Size())
	}
	// writes after recovery land on a clean boundary
	_ = reopened.Add(ctx, []string{"c"}, [][]float32{{0, 1}})
	_ = reopened.log.Close()

	again, err := OpenMemoryIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if again.Size() != 2 {
		t.Errorf("size after second replay = %d, want 2", again.Size())
	}
}

func TestOpenMemoryIndex_CloseCompacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	ctx := context.Background()
	idx, err := OpenMemoryIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(logPath(path))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("log should be empty after compaction, size=%d", info.Size())
	}
	reopened, err := OpenMemoryIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if reopened.Size() != 1 {
		t.Errorf("snapshot should hold the vector, size=%d", reopened.Size())
	}
}

func TestCosineHelpers(t *testing.T) {
	if InnerProduct([]float32{1, 0}, []float32{1, 0}) != 1 {
		t.Error("inner product of identical unit vectors should be 1")
	}
	if InnerProduct([]float32{1}, []float32{1, 0}) != 0 {
		t.Error("mismatched lengths should yield 0")
	}
	if L2Norm([]float32{3, 4}) != 5 {
		t.Error("L2Norm(3,4) should be 5")
	}
	if got := Cosine([]float32{3, 4}, []float32{6, 8}, 5); math.Abs(got-1) > 1e-9 {
		t.Errorf("parallel vectors should have cosine 1, got %v", got)
	}
	if Cosine([]float32{1, 0}, []float32{0, 0}, 1) != 0 {
		t.Error("zero vector should score 0")
	}
}

func TestMemoryIndex_SearchIgnoresMagnitude(t *testing.T) {
	idx, err := NewMemoryIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"long", "aligned"}, [][]float32{{10, 10}, {1, 0}}); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{2, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "aligned" || math.Abs(results[0].Score-1) > 1e-9 {
		t.Errorf("expected aligned first with cosine 1, got %s %v", results[0].ID, results[0].Score)
	}
	if math.Abs(results[1].Score-math.Sqrt2/2) > 1e-6 {
		t.Errorf("45 degree vector should score cos(45), got %v", results[1].Score)
	}
}
