// Package ingest drains the intake queue: OCR, visual embedding, persistence and retirement.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hyperjump/rewind/internal/archive"
	"github.com/hyperjump/rewind/internal/embedding"
	"github.com/hyperjump/rewind/internal/extract"
	"github.com/hyperjump/rewind/internal/keyword"
	"github.com/hyperjump/rewind/internal/models"
	"github.com/hyperjump/rewind/internal/queue"
	"github.com/hyperjump/rewind/internal/storage"
	"github.com/hyperjump/rewind/internal/vector"
	"github.com/hyperjump/rewind/internal/watcher"
)

const maxRetryBackoff = 10 * time.Minute

// Options tunes the worker pool and retry policy.
type Options struct {
	Workers          int
	PollInterval     time.Duration
	MaxEmbedAttempts int
	// RetryBackoff is the delay before the first embedding retry; it doubles per attempt.
	RetryBackoff time.Duration
	// RetryRate caps how many deferred items per second are returned to the queue.
	RetryRate float64
	// RelationalBackoff is the pause before releasing an item whose record could not be written.
	RelationalBackoff time.Duration
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.MaxEmbedAttempts <= 0 {
		o.MaxEmbedAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.RetryRate <= 0 {
		o.RetryRate = 5
	}
	if o.RelationalBackoff <= 0 {
		o.RelationalBackoff = time.Second
	}
}

// Stats counts item outcomes since start.
type Stats struct {
	Processed   int64 `json:"processed"`
	Deferred    int64 `json:"deferred"`
	Released    int64 `json:"released"`
	Quarantined int64 `json:"quarantined"`
	GaveUp      int64 `json:"vector_absent"`
}

// Pipeline owns the ingestion workers. Every item is handled under the shared side of
// the gate, so holding the exclusive side means no item is in flight.
type Pipeline struct {
	queue    *queue.Queue
	store    storage.Storage
	keyword  keyword.KeywordIndex
	vectors  vector.VectorIndex
	embedder embedding.Embedder
	ocr      extract.OCR
	archive  *archive.Archive
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	gate sync.RWMutex
	wake chan struct{}

	processed, deferred, released, quarantined, gaveUp atomic.Int64
}

// Option configures optional Pipeline dependencies.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithArchive retains retired frames in a; without it frames are deleted.
func WithArchive(a *archive.Archive) Option {
	return func(p *Pipeline) { p.archive = a }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New wires a Pipeline. ocr may be nil, in which case records carry no text.
func New(q *queue.Queue, store storage.Storage, kw keyword.KeywordIndex, vectors vector.VectorIndex,
	embedder embedding.Embedder, ocr extract.OCR, opts Options, options ...Option) *Pipeline {
	opts.applyDefaults()
	p := &Pipeline{
		queue:    q,
		store:    store,
		keyword:  kw,
		vectors:  vectors,
		embedder: embedder,
		ocr:      ocr,
		opts:     opts,
		logger:   zap.NewNop(),
		now:      time.Now,
		wake:     make(chan struct{}, opts.Workers),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Gate returns the exclusive side of the pipeline gate.
func (p *Pipeline) Gate() sync.Locker {
	return &p.gate
}

// Notify wakes idle workers.
func (p *Pipeline) Notify() {
	for i := 0; i < cap(p.wake); i++ {
		select {
		case p.wake <- struct{}{}:
		default:
			return
		}
	}
}

// Stats returns a snapshot of the outcome counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed:   p.processed.Load(),
		Deferred:    p.deferred.Load(),
		Released:    p.released.Load(),
		Quarantined: p.quarantined.Load(),
		GaveUp:      p.gaveUp.Load(),
	}
}

// Run recovers in-flight items, reconciles the stores and then processes items until ctx
// is done. New arrivals are picked up via fsnotify with a polling fallback.
func (p *Pipeline) Run(ctx context.Context) error {
	if _, err := p.queue.Recover(); err != nil {
		return fmt.Errorf("failed to recover queue: %w", err)
	}
	report, err := p.Reconcile(ctx)
	if err != nil {
		// Unrepaired state does not block new captures.
		p.logger.Error("failed to reconcile stores, continuing without repair", zap.Error(err))
	} else if !report.Empty() {
		p.logger.Info("reconciled stores",
			zap.Int("orphan_vectors", report.OrphanVectors),
			zap.Int("missing_vectors", report.MissingVectors),
			zap.Int("stranded_pending", report.StrandedPending))
	}

	w := watcher.NewWatcher(p.queue.PendingDir(), p.Notify, watcher.WithLogger(p.logger))
	if err := w.Start(ctx); err != nil {
		p.logger.Warn("intake watcher unavailable, polling only", zap.Error(err))
	} else {
		defer w.Stop()
	}

	p.logger.Info("ingestion started", zap.Int("workers", p.opts.Workers))
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.Workers; i++ {
		g.Go(func() error {
			p.worker(gctx)
			return nil
		})
	}
	g.Go(func() error {
		p.retryScanner(gctx)
		return nil
	})
	err = g.Wait()
	p.logger.Info("ingestion stopped", zap.Int64("processed", p.processed.Load()))
	return err
}

func (p *Pipeline) worker(ctx context.Context) {
	for {
		for ctx.Err() == nil {
			ok, err := p.ProcessNext(ctx)
			if err != nil {
				p.logger.Warn("ingest item failed", zap.Error(err))
			}
			if !ok {
				break
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-time.After(p.opts.PollInterval):
		}
	}
}

func (p *Pipeline) retryScanner(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Limit(p.opts.RetryRate), 1)
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n, err := p.promoteDue(ctx, limiter)
		if err != nil && ctx.Err() == nil {
			p.logger.Warn("retry scan failed", zap.Error(err))
		}
		if n > 0 {
			p.Notify()
		}
	}
}

// promoteDue returns due deferred items to pending, paced by limiter.
func (p *Pipeline) promoteDue(ctx context.Context, limiter *rate.Limiter) (int, error) {
	p.gate.RLock()
	defer p.gate.RUnlock()
	due, err := p.queue.DueDeferred(p.now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range due {
		if err := limiter.Wait(ctx); err != nil {
			return n, err
		}
		if err := p.queue.Promote(id); err != nil {
			p.logger.Warn("failed to promote deferred item", zap.String("id", id), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// ProcessNext claims and fully handles one item. It reports false when the queue is empty.
func (p *Pipeline) ProcessNext(ctx context.Context) (bool, error) {
	p.gate.RLock()
	defer p.gate.RUnlock()

	item, err := p.queue.Claim()
	switch {
	case errors.Is(err, queue.ErrEmpty):
		return false, nil
	case errors.Is(err, queue.ErrCorrupt):
		p.quarantine(item.ID, err)
		return true, nil
	case err != nil:
		return false, err
	}
	return true, p.process(ctx, item)
}

func (p *Pipeline) process(ctx context.Context, item *queue.Item) error {
	log := p.logger.With(zap.String("id", item.ID))

	data, err := item.ReadFrame()
	if err != nil {
		p.quarantine(item.ID, fmt.Errorf("%w: %v", queue.ErrCorrupt, err))
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		p.quarantine(item.ID, fmt.Errorf("%w: undecodable frame: %v", queue.ErrCorrupt, err))
		return nil
	}

	rec, err := p.ensureRecord(ctx, item, data)
	if err != nil {
		p.release(ctx, item.ID)
		return err
	}

	if rec.VectorState == models.VectorPending {
		attempts := item.Meta.Attempts + 1
		vec, err := p.embedder.EmbedImage(ctx, img)
		if err == nil {
			err = p.vectors.Add(ctx, []string{rec.ID}, [][]float32{vec})
		}
		if err != nil {
			if ctx.Err() != nil {
				p.release(ctx, item.ID)
				return ctx.Err()
			}
			if attempts < p.opts.MaxEmbedAttempts {
				return p.deferItem(ctx, item, attempts, err)
			}
			log.Warn("giving up on visual embedding", zap.Int("attempts", attempts), zap.Error(err))
			if err := p.store.SetVectorState(ctx, rec.ID, models.VectorAbsent, attempts); err != nil {
				p.release(ctx, item.ID)
				return fmt.Errorf("failed to mark vector absent: %w", err)
			}
			p.gaveUp.Add(1)
		} else if err := p.store.SetVectorState(ctx, rec.ID, models.VectorPresent, attempts); err != nil {
			// The vector write is an upsert; retrying the item repeats it harmlessly.
			p.release(ctx, item.ID)
			return fmt.Errorf("failed to mark vector present: %w", err)
		}
	}

	p.retire(item, rec, img, data)
	p.processed.Add(1)
	log.Debug("frame ingested", zap.Int("text_len", len(rec.Text)))
	return nil
}

// ensureRecord returns the record for the item, creating it (with OCR) on first sight.
// Reprocessing an item whose record exists skips OCR and the insert but indexes its text
// again, since the previous attempt may have died between the two writes.
func (p *Pipeline) ensureRecord(ctx context.Context, item *queue.Item, data []byte) (*models.Record, error) {
	rec, err := p.store.GetRecord(ctx, item.ID)
	if err == nil {
		p.indexText(ctx, rec)
		return rec, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up record: %w", err)
	}

	text := ""
	if p.ocr != nil {
		text, err = p.ocr.ExtractTextFromBytes(ctx, data)
		if err != nil {
			p.logger.Warn("ocr failed, storing record without text", zap.String("id", item.ID), zap.Error(err))
			text = ""
		}
	}
	rec = &models.Record{
		ID:          item.ID,
		CapturedAt:  item.Meta.CapturedAt,
		WindowTitle: item.Meta.WindowTitle,
		Text:        text,
		Fingerprint: item.Meta.Fingerprint,
		VectorState: models.VectorPending,
		CreatedAt:   p.now(),
	}
	if p.archive != nil {
		rec.ImageRef = p.archive.Ref(rec.ID, rec.CapturedAt)
	}
	created, err := p.store.CreateRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	if !created {
		if rec, err = p.store.GetRecord(ctx, item.ID); err != nil {
			return nil, err
		}
	}
	p.indexText(ctx, rec)
	return rec, nil
}

// indexText replaces the record's full-text document.
func (p *Pipeline) indexText(ctx context.Context, rec *models.Record) {
	if err := p.keyword.Index(ctx, rec); err != nil {
		p.logger.Warn("failed to index record text", zap.String("id", rec.ID), zap.Error(err))
	}
}

func (p *Pipeline) deferItem(ctx context.Context, item *queue.Item, attempts int, cause error) error {
	if err := p.store.SetVectorState(ctx, item.ID, models.VectorPending, attempts); err != nil {
		p.logger.Warn("failed to record embed attempt", zap.String("id", item.ID), zap.Error(err))
	}
	delay := Backoff(p.opts.RetryBackoff, attempts)
	if err := p.queue.Defer(item, p.now().Add(delay), cause); err != nil {
		return fmt.Errorf("failed to defer item: %w", err)
	}
	p.deferred.Add(1)
	p.logger.Info("visual embedding deferred",
		zap.String("id", item.ID), zap.Int("attempt", attempts), zap.Duration("retry_in", delay), zap.Error(cause))
	return nil
}

// Backoff returns base doubled for each attempt after the first, capped at ten minutes.
func Backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return d
}

func (p *Pipeline) retire(item *queue.Item, rec *models.Record, img image.Image, data []byte) {
	if p.archive != nil && rec.ImageRef != "" {
		if err := p.archive.Store(rec.ImageRef, img, data); err != nil {
			p.logger.Warn("failed to archive frame", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	if err := p.queue.Ack(item.ID); err != nil {
		p.logger.Warn("failed to remove retired item", zap.String("id", item.ID), zap.Error(err))
	}
}

func (p *Pipeline) release(ctx context.Context, id string) {
	select {
	case <-ctx.Done():
	case <-time.After(p.opts.RelationalBackoff):
	}
	if err := p.queue.Release(id); err != nil {
		p.logger.Warn("failed to release item", zap.String("id", id), zap.Error(err))
		return
	}
	p.released.Add(1)
}

func (p *Pipeline) quarantine(id string, reason error) {
	if err := p.queue.Quarantine(id, reason); err != nil {
		p.logger.Error("failed to quarantine item", zap.String("id", id), zap.Error(err))
		return
	}
	p.quarantined.Add(1)
}
