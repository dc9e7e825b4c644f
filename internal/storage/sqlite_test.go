package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/rewind/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *SQLiteStorage, texts ...string) {
	t.Helper()
	ctx := context.Background()
	for i, text := range texts {
		rec := &models.Record{
			ID:          fmt.Sprintf("rec-%02d", i),
			CapturedAt:  base.Add(time.Duration(i) * time.Minute),
			WindowTitle: fmt.Sprintf("window %d", i),
			Text:        text,
		}
		if _, err := store.CreateRecord(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSQLiteStorage_CreateAndGet(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rec := &models.Record{
		ID:          "frame-1",
		CapturedAt:  base,
		WindowTitle: "Terminal",
		Text:        "panic: stack trace",
		ImageRef:    "2024/03/01/frame-1.jpg",
		Fingerprint: "ffee00",
	}
	created, err := store.CreateRecord(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("first insert should create the record")
	}
	if rec.VectorState != models.VectorPending {
		t.Errorf("vector state should default to pending, got %s", rec.VectorState)
	}

	got, err := store.GetRecord(ctx, "frame-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.WindowTitle != "Terminal" || got.Text != "panic: stack trace" || got.ImageRef != rec.ImageRef {
		t.Errorf("got %+v", got)
	}
	if !got.CapturedAt.Equal(base) {
		t.Errorf("captured_at = %v, want %v", got.CapturedAt, base)
	}

	if _, err := store.GetRecord(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_CreateRecordIsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	rec := &models.Record{ID: "dup", CapturedAt: base, Text: "first"}
	if _, err := store.CreateRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}
	created, err := store.CreateRecord(ctx, &models.Record{ID: "dup", CapturedAt: base, Text: "second"})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second insert with the same id should be a no-op")
	}
	n, _ := store.CountRecords(ctx)
	if n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
	got, _ := store.GetRecord(ctx, "dup")
	if got.Text != "first" {
		t.Errorf("original record should be kept, got text %q", got.Text)
	}
}

func TestSQLiteStorage_SearchText(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seed(t, store, "Stack Trace in main.go", "nothing here", "another stack trace", "100% done", "stack_trace")

	recs, err := store.SearchText(ctx, "stack trace", models.TimeRange{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(recs))
	}
	if recs[0].ID != "rec-02" || recs[1].ID != "rec-00" {
		t.Errorf("expected newest first, got %s, %s", recs[0].ID, recs[1].ID)
	}

	// LIKE wildcards in the query are matched literally
	recs, err = store.SearchText(ctx, "%", models.TimeRange{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "rec-03" {
		t.Errorf("expected only the literal %% match, got %d", len(recs))
	}

	recs, _ = store.SearchText(ctx, "stack", models.TimeRange{}, 1)
	if len(recs) != 1 {
		t.Errorf("limit not applied: got %d", len(recs))
	}

	tr := models.TimeRange{To: base.Add(90 * time.Second)}
	recs, _ = store.SearchText(ctx, "stack trace", tr, 10)
	if len(recs) != 1 || recs[0].ID != "rec-00" {
		t.Errorf("range filter not applied: %v", recs)
	}
}

func TestSQLiteStorage_SearchTextFoldsUnicode(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seed(t, store, "ÜBER DIE GRÖSSE", "über die Größe", "uber")

	recs, err := store.SearchText(ctx, "über", models.TimeRange{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected both spellings of über, got %d", len(recs))
	}
	recs, _ = store.SearchText(ctx, "GRÖSSE", models.TimeRange{}, 10)
	if len(recs) != 1 || recs[0].ID != "rec-00" {
		t.Errorf("expected rec-00 for GRÖSSE, got %v", recs)
	}
}

func TestSQLiteStorage_ListRecent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seed(t, store, "a", "b", "c", "d")

	recs, err := store.ListRecent(ctx, models.TimeRange{}, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[0].ID != "rec-03" {
		t.Fatalf("unexpected recent list: %d", len(recs))
	}
	recs, _ = store.ListRecent(ctx, models.TimeRange{}, 3, 3)
	if len(recs) != 1 || recs[0].ID != "rec-00" {
		t.Errorf("offset not applied")
	}
	recs, _ = store.ListRecent(ctx, models.TimeRange{From: base.Add(2 * time.Minute)}, 0, 10)
	if len(recs) != 2 {
		t.Errorf("range filter: got %d", len(recs))
	}
}

func TestSQLiteStorage_VectorState(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seed(t, store, "a", "b", "c")

	if err := store.SetVectorState(ctx, "rec-00", models.VectorPresent, 1); err != nil {
		t.Fatal(err)
	}
	if err := store.SetVectorState(ctx, "rec-01", models.VectorAbsent, 3); err != nil {
		t.Fatal(err)
	}
	if err := store.SetVectorState(ctx, "missing", models.VectorPresent, 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetVectorState(ctx, "rec-02", "bogus", 1); err == nil {
		t.Error("expected error for invalid state")
	}

	got, _ := store.GetRecord(ctx, "rec-01")
	if got.VectorState != models.VectorAbsent || got.EmbedAttempts != 3 {
		t.Errorf("got state %s attempts %d", got.VectorState, got.EmbedAttempts)
	}

	ids, err := store.ListIDsByVectorState(ctx, models.VectorPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "rec-02" {
		t.Errorf("pending ids = %v", ids)
	}

	counts, err := store.CountByVectorState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.VectorPresent] != 1 || counts[models.VectorAbsent] != 1 || counts[models.VectorPending] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestSQLiteStorage_GetRecordsAndWipe(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seed(t, store, "a", "b")

	got, err := store.GetRecords(ctx, []string{"rec-00", "rec-01", "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["rec-01"] == nil {
		t.Errorf("GetRecords = %v", got)
	}
	empty, err := store.GetRecords(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("GetRecords(nil) = %v, %v", empty, err)
	}

	if err := store.Wipe(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := store.CountRecords(ctx)
	if n != 0 {
		t.Errorf("expected 0 records after wipe, got %d", n)
	}
}

func TestSQLiteStorage_GetRecordsBeyondVariableLimit(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seed(t, store, "a", "b", "c")

	ids := make([]string, 0, 33000)
	for i := 0; i < 33000; i++ {
		ids = append(ids, fmt.Sprintf("rec-%02d", i))
	}
	got, err := store.GetRecords(ctx, ids)
	if err != nil {
		t.Fatalf("GetRecords with %d ids: %v", len(ids), err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 records, got %d", len(got))
	}
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	seed(t, store, "a")
	n, err := store.CountRecords(context.Background())
	if err != nil || n != 1 {
		t.Errorf("count = %d, %v", n, err)
	}
}
