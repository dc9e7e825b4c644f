// Package capture implements the window monitor and capture scheduler: it polls the focused
// window, skips blacklisted ones, grabs a frame, drops near-duplicates and enqueues the rest.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/rewind/internal/control"
	"github.com/hyperjump/rewind/internal/models"
)

// Outcome is the state a capture cycle ended in.
type Outcome string

const (
	OutcomePaused    Outcome = "paused"
	OutcomeStopping  Outcome = "stopping"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeEnqueued  Outcome = "enqueued"
	OutcomeFailed    Outcome = "failed"
)

// Enqueuer accepts frames for ingestion. *queue.Queue implements it.
type Enqueuer interface {
	Enqueue(meta *models.FrameMeta, frame []byte) error
}

// StateSource reports the control state. *control.Controller implements it.
type StateSource interface {
	State() control.State
}

// Options configures a Watcher.
type Options struct {
	Interval time.Duration
	// Threshold is the Hamming distance below which a frame duplicates the reference frame.
	Threshold int
	// DedupWindow limits how long the reference frame suppresses duplicates; zero is unbounded.
	DedupWindow time.Duration
	Blacklist   []string
}

// Watcher runs capture cycles. Cycles are serialized; Quiesce holds them off.
type Watcher struct {
	cycleMu sync.Mutex

	window    WindowSource
	screen    Screen
	queue     Enqueuer
	state     StateSource
	blacklist *Blacklist
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
	newID     func() (string, error)

	mu         sync.Mutex
	lastPrint  Fingerprint
	lastAccept time.Time
	stats      Stats
}

// Stats counts cycle outcomes since start.
type Stats struct {
	Enqueued  int64 `json:"enqueued"`
	Discarded int64 `json:"discarded"`
	Blocked   int64 `json:"blocked"`
	Failed    int64 `json:"failed"`
}

// Option configures optional Watcher dependencies.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// WithIDGenerator overrides frame id generation (tests).
func WithIDGenerator(gen func() (string, error)) Option {
	return func(w *Watcher) { w.newID = gen }
}

// NewWatcher wires a Watcher.
func NewWatcher(window WindowSource, screen Screen, q Enqueuer, state StateSource, opts Options, options ...Option) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	w := &Watcher{
		window:    window,
		screen:    screen,
		queue:     q,
		state:     state,
		blacklist: NewBlacklist(opts.Blacklist),
		opts:      opts,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     newFrameID,
	}
	for _, o := range options {
		o(w)
	}
	return w
}

func newFrameID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Run executes cycles every interval until ctx is done or the control state is Stopping.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("capture started",
		zap.Duration("interval", w.opts.Interval),
		zap.Int("threshold", w.opts.Threshold),
		zap.Int("blacklist_rules", len(w.blacklist.rules)))
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()
	for {
		outcome, err := w.Cycle(ctx)
		if outcome == OutcomeStopping {
			w.logger.Info("capture stopped")
			return nil
		}
		if err != nil {
			w.logger.Warn("capture cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("capture stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Cycle runs one capture cycle to completion and reports how it ended.
// A non-nil error accompanies OutcomeFailed only.
func (w *Watcher) Cycle(ctx context.Context) (Outcome, error) {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()
	if ctx.Err() != nil {
		return OutcomeStopping, nil
	}
	switch w.state.State() {
	case control.StateStopping:
		return OutcomeStopping, nil
	case control.StatePaused:
		return OutcomePaused, nil
	}

	win, err := w.window.ActiveWindow(ctx)
	if err != nil {
		// Without a title the blacklist cannot be applied.
		return w.fail(err)
	}
	if rule, blocked := w.blacklist.Match(win); blocked {
		w.logger.Debug("window blacklisted", zap.String("rule", rule))
		w.count(OutcomeBlocked)
		return OutcomeBlocked, nil
	}

	capturedAt := w.now()
	data, err := w.screen.Capture(ctx)
	if err != nil {
		return w.fail(err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return w.fail(fmt.Errorf("decode frame: %w", err))
	}
	fp, err := NewFingerprint(img)
	if err != nil {
		return w.fail(err)
	}

	if w.isDuplicate(fp, capturedAt) {
		w.count(OutcomeDiscarded)
		return OutcomeDiscarded, nil
	}

	id, err := w.newID()
	if err != nil {
		return w.fail(fmt.Errorf("frame id: %w", err))
	}
	meta := &models.FrameMeta{
		ID:          id,
		CapturedAt:  capturedAt.UTC(),
		WindowTitle: win.Title,
		Fingerprint: fp.String(),
	}
	if err := w.queue.Enqueue(meta, data); err != nil {
		return w.fail(fmt.Errorf("enqueue: %w", err))
	}

	w.mu.Lock()
	w.lastPrint = fp
	w.lastAccept = capturedAt
	w.stats.Enqueued++
	w.mu.Unlock()
	w.logger.Debug("frame accepted", zap.String("id", id), zap.String("fingerprint", meta.Fingerprint))
	return OutcomeEnqueued, nil
}

func (w *Watcher) isDuplicate(fp Fingerprint, at time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastPrint.IsZero() {
		return false
	}
	if w.opts.DedupWindow > 0 && at.Sub(w.lastAccept) > w.opts.DedupWindow {
		return false
	}
	dist := fp.Distance(w.lastPrint)
	if dist < w.opts.Threshold {
		w.logger.Debug("frame discarded as duplicate", zap.Int("distance", dist))
		return true
	}
	return false
}

func (w *Watcher) fail(err error) (Outcome, error) {
	w.count(OutcomeFailed)
	return OutcomeFailed, err
}

func (w *Watcher) count(o Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch o {
	case OutcomeBlocked:
		w.stats.Blocked++
	case OutcomeDiscarded:
		w.stats.Discarded++
	case OutcomeFailed:
		w.stats.Failed++
	}
}

// Stats returns a snapshot of the outcome counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Quiesce waits for an in-flight cycle to finish and holds off new cycles until release is
// called. Callers pause capture first, so cycles that start after release see the pause.
func (w *Watcher) Quiesce() (release func()) {
	w.cycleMu.Lock()
	return w.cycleMu.Unlock
}

// Reset forgets the reference frame, so the next capture is always accepted.
func (w *Watcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastPrint = Fingerprint{}
	w.lastAccept = time.Time{}
}
