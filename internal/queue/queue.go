// Package queue implements the durable intake queue between the watcher and the ingestion workers.
//
// Each item is a directory <state>/<id>/ holding frame.png and meta.json. Items move between
// state directories by rename, which is atomic on one filesystem, so a crash leaves every
// item in exactly one state.
package queue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/rewind/internal/models"
)

// Sentinel errors.
var (
	ErrEmpty   = errors.New("queue empty")
	ErrCorrupt = errors.New("corrupt queue item")
)

// File names inside an item directory.
const (
	FrameFile  = "frame.png"
	MetaFile   = "meta.json"
	ReasonFile = "reason.txt"
)

// Item state directories.
const (
	DirStaging    = "staging"
	DirPending    = "pending"
	DirProcessing = "processing"
	DirDeferred   = "deferred"
	DirQuarantine = "quarantine"
)

var allDirs = []string{DirStaging, DirPending, DirProcessing, DirDeferred, DirQuarantine}

// Item is a claimed queue entry. It lives under processing/ until acked, released,
// deferred or quarantined.
type Item struct {
	ID   string
	Dir  string
	Meta models.FrameMeta
}

// FramePath returns the path of the frame image.
func (it *Item) FramePath() string {
	return filepath.Join(it.Dir, FrameFile)
}

// ReadFrame returns the raw frame bytes.
func (it *Item) ReadFrame() ([]byte, error) {
	return os.ReadFile(it.FramePath())
}

// Queue is a directory-backed work queue.
type Queue struct {
	root   string
	logger *zap.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// New opens (creating if needed) a queue rooted at root.
func New(root string, opts ...Option) (*Queue, error) {
	q := &Queue{root: root, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(q)
	}
	for _, d := range allDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return nil, fmt.Errorf("failed to create queue dir %s: %w", d, err)
		}
	}
	return q, nil
}

// Root returns the queue root directory.
func (q *Queue) Root() string {
	return q.root
}

// PendingDir returns the directory new items appear in.
func (q *Queue) PendingDir() string {
	return q.dir(DirPending)
}

func (q *Queue) dir(state string) string {
	return filepath.Join(q.root, state)
}

func (q *Queue) itemDir(state, id string) string {
	return filepath.Join(q.root, state, id)
}

// Enqueue durably writes a frame and its sidecar and publishes them to pending/.
// The item is written under staging/ first so a reader never sees a partial item.
func (q *Queue) Enqueue(meta *models.FrameMeta, frame []byte) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	if strings.ContainsAny(meta.ID, `/\`) || meta.ID == "." || meta.ID == ".." {
		return fmt.Errorf("invalid frame id %q", meta.ID)
	}
	staging := q.itemDir(DirStaging, meta.ID)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	if err := writeFileSync(filepath.Join(staging, FrameFile), frame); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := writeMeta(staging, meta); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(staging, q.itemDir(DirPending, meta.ID)); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("failed to publish frame: %w", err)
	}
	syncDir(q.dir(DirPending))
	q.logger.Debug("frame enqueued", zap.String("id", meta.ID))
	return nil
}

// Claim moves the oldest pending item to processing/ and returns it.
// It returns ErrEmpty when nothing is pending. If the item's sidecar is unreadable the
// item is still returned (claimed) together with an error wrapping ErrCorrupt.
func (q *Queue) Claim() (*Item, error) {
	ids, err := q.list(DirPending)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		dst := q.itemDir(DirProcessing, id)
		if err := os.Rename(q.itemDir(DirPending, id), dst); err != nil {
			// Another worker won the rename.
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, fmt.Errorf("failed to claim %s: %w", id, err)
		}
		item := &Item{ID: id, Dir: dst}
		meta, err := readMeta(dst)
		if err != nil {
			return item, err
		}
		if meta.ID != id {
			return item, fmt.Errorf("%w: sidecar id %q does not match item %q", ErrCorrupt, meta.ID, id)
		}
		item.Meta = *meta
		return item, nil
	}
	return nil, ErrEmpty
}

// Ack removes a finished item.
func (q *Queue) Ack(id string) error {
	if err := os.RemoveAll(q.itemDir(DirProcessing, id)); err != nil {
		return fmt.Errorf("failed to ack %s: %w", id, err)
	}
	return nil
}

// Release returns a claimed item to pending/ unchanged.
func (q *Queue) Release(id string) error {
	if err := os.Rename(q.itemDir(DirProcessing, id), q.itemDir(DirPending, id)); err != nil {
		return fmt.Errorf("failed to release %s: %w", id, err)
	}
	return nil
}

// Defer records a failed attempt on a claimed item and parks it in deferred/ until notBefore.
func (q *Queue) Defer(item *Item, notBefore time.Time, cause error) error {
	item.Meta.Attempts++
	item.Meta.NextAttemptAt = notBefore.UTC()
	if cause != nil {
		item.Meta.LastError = cause.Error()
	}
	if err := writeMeta(item.Dir, &item.Meta); err != nil {
		return err
	}
	dst := q.itemDir(DirDeferred, item.ID)
	if err := os.Rename(item.Dir, dst); err != nil {
		return fmt.Errorf("failed to defer %s: %w", item.ID, err)
	}
	item.Dir = dst
	return nil
}

// DueDeferred lists deferred items whose not-before time is at or before now.
// Items with unreadable sidecars are moved to quarantine.
func (q *Queue) DueDeferred(now time.Time) ([]string, error) {
	ids, err := q.list(DirDeferred)
	if err != nil {
		return nil, err
	}
	var due []string
	for _, id := range ids {
		meta, err := readMeta(q.itemDir(DirDeferred, id))
		if err != nil {
			q.quarantineFrom(DirDeferred, id, err)
			continue
		}
		if !meta.NextAttemptAt.After(now) {
			due = append(due, id)
		}
	}
	return due, nil
}

// Promote moves a deferred item back to pending/.
func (q *Queue) Promote(id string) error {
	if err := os.Rename(q.itemDir(DirDeferred, id), q.itemDir(DirPending, id)); err != nil {
		return fmt.Errorf("failed to promote %s: %w", id, err)
	}
	return nil
}

// Quarantine moves a claimed item out of the work set for good, recording why.
func (q *Queue) Quarantine(id string, reason error) error {
	return q.quarantineFrom(DirProcessing, id, reason)
}

func (q *Queue) quarantineFrom(state, id string, reason error) error {
	dst := q.itemDir(DirQuarantine, id)
	_ = os.RemoveAll(dst)
	if err := os.Rename(q.itemDir(state, id), dst); err != nil {
		return fmt.Errorf("failed to quarantine %s: %w", id, err)
	}
	if reason != nil {
		_ = os.WriteFile(filepath.Join(dst, ReasonFile), []byte(reason.Error()+"\n"), 0644)
	}
	q.logger.Warn("queue item quarantined", zap.String("id", id), zap.Error(reason))
	return nil
}

// Recover returns items left in processing/ by a crashed worker to pending/ and drops
// incomplete staging writes. It returns the number of recovered items.
func (q *Queue) Recover() (int, error) {
	staged, err := q.list(DirStaging)
	if err != nil {
		return 0, err
	}
	for _, id := range staged {
		_ = os.RemoveAll(q.itemDir(DirStaging, id))
	}
	ids, err := q.list(DirProcessing)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := os.Rename(q.itemDir(DirProcessing, id), q.itemDir(DirPending, id)); err != nil {
			if errors.Is(err, os.ErrExist) {
				// Published twice; the pending copy wins.
				_ = os.RemoveAll(q.itemDir(DirProcessing, id))
				continue
			}
			return n, fmt.Errorf("failed to recover %s: %w", id, err)
		}
		n++
	}
	if n > 0 {
		q.logger.Info("recovered in-flight queue items", zap.Int("count", n))
	}
	return n, nil
}

// Has reports whether id is still in the work set (pending, processing or deferred).
func (q *Queue) Has(id string) bool {
	for _, state := range []string{DirPending, DirProcessing, DirDeferred} {
		if _, err := os.Stat(q.itemDir(state, id)); err == nil {
			return true
		}
	}
	return false
}

// Depth returns the number of items in each state directory.
func (q *Queue) Depth() (map[string]int, error) {
	out := make(map[string]int, len(allDirs))
	for _, d := range allDirs {
		ids, err := q.list(d)
		if err != nil {
			return nil, err
		}
		out[d] = len(ids)
	}
	return out, nil
}

// Pending returns the number of items waiting to be claimed.
func (q *Queue) Pending() (int, error) {
	ids, err := q.list(DirPending)
	return len(ids), err
}

// Purge deletes every item in every state.
func (q *Queue) Purge() error {
	for _, d := range allDirs {
		entries, err := os.ReadDir(q.dir(d))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to read %s: %w", d, err)
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(q.dir(d), e.Name())); err != nil {
				return fmt.Errorf("failed to purge %s/%s: %w", d, e.Name(), err)
			}
		}
	}
	return nil
}

// list returns item ids in a state directory, oldest first. Frame ids are UUIDv7,
// so lexical order is capture order.
func (q *Queue) list(state string) ([]string, error) {
	entries, err := os.ReadDir(q.dir(state))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", state, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func readMeta(dir string) (*models.FrameMeta, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var meta models.FrameMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &meta, nil
}

func writeMeta(dir string, meta *models.FrameMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode frame meta: %w", err)
	}
	tmp := filepath.Join(dir, MetaFile+".tmp")
	if err := writeFileSync(tmp, data); err != nil {
		return fmt.Errorf("failed to write frame meta: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, MetaFile)); err != nil {
		return fmt.Errorf("failed to write frame meta: %w", err)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
}
