// Package admin implements the danger-zone operations: the exclusive wipe and archive compaction.
package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/rewind/internal/archive"
	"github.com/hyperjump/rewind/internal/keyword"
	"github.com/hyperjump/rewind/internal/queue"
	"github.com/hyperjump/rewind/internal/storage"
	"github.com/hyperjump/rewind/internal/vector"
)

// Pauser stops new captures. *control.Controller implements it.
type Pauser interface {
	Pause() error
}

// Capturer is a running capture loop. *capture.Watcher implements it.
type Capturer interface {
	Quiesce() (release func())
	Reset()
}

// WipeReport summarizes what a wipe removed.
type WipeReport struct {
	Records  int64         `json:"records"`
	Vectors  int           `json:"vectors"`
	Frames   int           `json:"frames"`
	Duration time.Duration `json:"duration_ns"`
}

// Wiper empties every store. It takes the exclusive side of the ingestion gate, so it waits
// for in-flight items to finish and no item starts until it is done.
type Wiper struct {
	gate    sync.Locker
	pauser  Pauser
	capture Capturer
	store   storage.Storage
	keyword keyword.KeywordIndex
	vectors vector.VectorIndex
	queue   *queue.Queue
	archive *archive.Archive
	logger  *zap.Logger
}

// Option configures a Wiper.
type Option func(*Wiper)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Wiper) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithCapture makes the wipe wait for an in-flight capture cycle and forget its reference frame.
func WithCapture(c Capturer) Option {
	return func(w *Wiper) { w.capture = c }
}

// NewWiper wires a Wiper. gate is the ingestion pipeline's gate; pass a fresh mutex when no
// pipeline runs in this process.
func NewWiper(gate sync.Locker, pauser Pauser, store storage.Storage, kw keyword.KeywordIndex,
	vectors vector.VectorIndex, q *queue.Queue, arch *archive.Archive, opts ...Option) *Wiper {
	w := &Wiper{
		gate:    gate,
		pauser:  pauser,
		store:   store,
		keyword: kw,
		vectors: vectors,
		queue:   q,
		archive: arch,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Wipe pauses capture, waits for the in-flight capture cycle and in-flight ingestion, then
// deletes all records, vectors, full-text documents, queued frames and archived frames.
// Capture stays paused afterwards.
func (w *Wiper) Wipe(ctx context.Context) (*WipeReport, error) {
	start := time.Now()
	if err := w.pauser.Pause(); err != nil {
		return nil, fmt.Errorf("failed to pause capture: %w", err)
	}
	if w.capture != nil {
		release := w.capture.Quiesce()
		defer release()
		w.capture.Reset()
	}

	w.gate.Lock()
	defer w.gate.Unlock()

	report := &WipeReport{}
	var err error
	if report.Records, err = w.store.CountRecords(ctx); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	if report.Vectors, err = w.vectors.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}
	if w.archive != nil {
		if report.Frames, err = w.archive.Count(); err != nil {
			return nil, fmt.Errorf("failed to count archived frames: %w", err)
		}
	}

	// Queue first: nothing may be ingested again after the stores are empty.
	if err := w.queue.Purge(); err != nil {
		return nil, fmt.Errorf("failed to purge intake queue: %w", err)
	}
	if err := w.vectors.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset vector store: %w", err)
	}
	if err := w.keyword.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset full-text index: %w", err)
	}
	if err := w.store.Wipe(ctx); err != nil {
		return nil, err
	}
	if w.archive != nil {
		if err := w.archive.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear archive: %w", err)
		}
	}
	report.Duration = time.Since(start)
	w.logger.Warn("all captured data wiped",
		zap.Int64("records", report.Records),
		zap.Int("vectors", report.Vectors),
		zap.Int("frames", report.Frames))
	return report, nil
}

// Compress converts full-size PNG frames left in the archive to JPEG.
func Compress(ctx context.Context, arch *archive.Archive, workers int, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	n, err := arch.Compress(ctx, workers)
	logger.Info("archive compressed", zap.Int("converted", n), zap.Error(err))
	return n, err
}
