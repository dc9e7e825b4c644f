package queue

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperjump/rewind/internal/models"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := New(filepath.Join(t.TempDir(), "intake"))
	require.NoError(t, err)
	return q
}

func meta(id string) *models.FrameMeta {
	return &models.FrameMeta{
		ID:          id,
		CapturedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		WindowTitle: "Terminal",
		Fingerprint: "ffee00",
	}
}

func TestQueue_EnqueueClaimAck(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Enqueue(meta("b"), []byte("frame-b")))
	require.NoError(t, q.Enqueue(meta("a"), []byte("frame-a")))

	n, err := q.Pending()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	item, err := q.Claim()
	require.NoError(t, err)
	require.Equal(t, "a", item.ID, "oldest id first")
	require.Equal(t, "Terminal", item.Meta.WindowTitle)
	data, err := item.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, "frame-a", string(data))
	require.True(t, q.Has("a"))

	require.NoError(t, q.Ack("a"))
	require.False(t, q.Has("a"))

	_, err = q.Claim()
	require.NoError(t, err)
	_, err = q.Claim()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestQueue_EnqueueRejectsBadMeta(t *testing.T) {
	q := newTestQueue(t)
	require.Error(t, q.Enqueue(&models.FrameMeta{ID: "x"}, nil), "missing capture time")
	require.Error(t, q.Enqueue(meta("../escape"), nil))
	d, err := q.Depth()
	require.NoError(t, err)
	require.Zero(t, d[DirPending])
	require.Zero(t, d[DirStaging])
}

func TestQueue_ConcurrentClaimIsExclusive(t *testing.T) {
	q := newTestQueue(t)
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		require.NoError(t, q.Enqueue(meta(id), []byte(id)))
	}

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Claim()
				if errors.Is(err, ErrEmpty) {
					return
				}
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[item.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 8)
	for id, n := range seen {
		require.Equal(t, 1, n, "item %s claimed %d times", id, n)
	}
}

func TestQueue_DeferAndPromote(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Enqueue(meta("a"), []byte("x")))
	item, err := q.Claim()
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, q.Defer(item, now.Add(time.Minute), errors.New("embed failed")))
	require.True(t, q.Has("a"))

	due, err := q.DueDeferred(now)
	require.NoError(t, err)
	require.Empty(t, due)

	due, err = q.DueDeferred(now.Add(2 * time.Minute))
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, due)
	require.NoError(t, q.Promote("a"))

	item, err = q.Claim()
	require.NoError(t, err)
	require.Equal(t, 1, item.Meta.Attempts)
	require.Equal(t, "embed failed", item.Meta.LastError)
}

func TestQueue_CorruptSidecarIsQuarantined(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Enqueue(meta("a"), []byte("x")))
	require.NoError(t, os.WriteFile(filepath.Join(q.PendingDir(), "a", MetaFile), []byte("{not json"), 0644))

	item, err := q.Claim()
	require.ErrorIs(t, err, ErrCorrupt)
	require.NotNil(t, item)
	require.NoError(t, q.Quarantine(item.ID, err))

	require.False(t, q.Has("a"))
	reason, err := os.ReadFile(filepath.Join(q.Root(), DirQuarantine, "a", ReasonFile))
	require.NoError(t, err)
	require.Contains(t, string(reason), "corrupt")

	_, err = q.Claim()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestQueue_RecoverAndRelease(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Enqueue(meta("a"), []byte("x")))
	require.NoError(t, q.Enqueue(meta("b"), []byte("x")))
	_, err := q.Claim()
	require.NoError(t, err)
	item, err := q.Claim()
	require.NoError(t, err)
	require.NoError(t, q.Release(item.ID))

	// Leftover partial write from a crash during Enqueue.
	require.NoError(t, os.MkdirAll(filepath.Join(q.Root(), DirStaging, "c"), 0755))

	n, err := q.Recover()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	d, err := q.Depth()
	require.NoError(t, err)
	require.Equal(t, 2, d[DirPending])
	require.Zero(t, d[DirProcessing])
	require.Zero(t, d[DirStaging])
}

func TestQueue_Purge(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Enqueue(meta("a"), []byte("x")))
	require.NoError(t, q.Enqueue(meta("b"), []byte("x")))
	_, err := q.Claim()
	require.NoError(t, err)

	require.NoError(t, q.Purge())
	d, err := q.Depth()
	require.NoError(t, err)
	for state, n := range d {
		require.Zero(t, n, state)
	}
	// Still usable after purge.
	require.NoError(t, q.Enqueue(meta("c"), []byte("x")))
}
