package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/rewind/internal/config"
	"github.com/hyperjump/rewind/internal/embedding"
	"github.com/hyperjump/rewind/internal/keyword"
	"github.com/hyperjump/rewind/internal/models"
	"github.com/hyperjump/rewind/internal/storage"
	"github.com/hyperjump/rewind/internal/vector"
)

// Score given to records whose text contains the query verbatim.
const substringScore = 1.0

// Ceiling for full-text matches that are not verbatim substring hits.
const fullTextScale = 0.5

// Engine runs text, visual and hybrid search over records.
type Engine struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
	logger       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	cfg *config.SearchConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		storage:      storage,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// candidates is one retrieval path's ranked output plus the records it loaded.
type candidates struct {
	ranked  []Scored
	records map[string]*models.Record
}

// Search validates the query and runs it in the requested mode.
// Invalid queries return an error wrapping models.ErrInvalidQuery.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.config.DefaultLimit, e.config.MaxLimit); err != nil {
		return nil, err
	}

	var text, visual *candidates
	switch query.Mode {
	case models.ModeText:
		var err error
		if text, err = e.textCandidates(ctx, query); err != nil {
			return nil, err
		}
	case models.ModeVisual:
		var err error
		if visual, err = e.visualCandidates(ctx, query); err != nil {
			return nil, err
		}
	case models.ModeHybrid:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			text, err = e.textCandidates(gctx, query)
			return err
		})
		g.Go(func() error {
			var err error
			visual, err = e.visualCandidates(gctx, query)
			if err != nil && gctx.Err() == nil {
				// Text results still answer the query.
				e.logger.Warn("visual path failed, returning text results only", zap.Error(err))
				visual = nil
				return nil
			}
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	records := make(map[string]*models.Record)
	var textRanked, visualRanked []Scored
	if text != nil {
		textRanked = text.ranked
		for id, rec := range text.records {
			records[id] = rec
		}
	}
	if visual != nil {
		visualRanked = visual.ranked
		for id, rec := range visual.records {
			records[id] = rec
		}
	}

	policy := FusionMax
	if query.Mode == models.ModeHybrid {
		policy = e.config.Fusion
	}
	fused, err := Fuse(textRanked, visualRanked, policy)
	if err != nil {
		return nil, err
	}
	SortFused(fused, capturedAtIndex(records))

	total := len(fused)
	if len(fused) > query.Limit {
		fused = fused[:query.Limit]
	}
	response := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(fused)),
		Total:   total,
		Query:   query.Query,
		Mode:    query.Mode,
	}
	for i, f := range fused {
		rec := records[f.ID]
		if rec == nil {
			continue
		}
		res := e.toResult(rec, query.Query)
		res.Score = f.Score
		res.TextScore = f.TextScore
		res.VisualScore = f.VisualScore
		res.Mode = f.Mode()
		res.Rank = i + 1
		response.Results = append(response.Results, res)
	}
	response.QueryTime = time.Since(startTime).Milliseconds()
	return response, nil
}

func (e *Engine) candidateLimit(query *models.SearchQuery) int {
	return max(e.config.TopKCandidates, query.Limit)
}

// textCandidates merges verbatim substring hits from the relational store with full-text
// matches from the keyword index. Substring hits score 1.0 and come newest first; the
// rest score 0.5 scaled by their relative full-text score.
func (e *Engine) textCandidates(ctx context.Context, query *models.SearchQuery) (*candidates, error) {
	limit := e.candidateLimit(query)
	hits, err := e.storage.SearchText(ctx, query.Query, query.Range, limit)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}
	out := &candidates{records: make(map[string]*models.Record, len(hits))}
	for _, rec := range hits {
		out.records[rec.ID] = rec
		out.ranked = append(out.ranked, Scored{ID: rec.ID, Score: substringScore})
	}

	kwResults, err := e.keywordIndex.Search(ctx, query.Query, limit,
		&keyword.SearchOptions{TitleBoost: 1, FuzzyEnabled: true, Fuzziness: 1})
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	normalized := NormalizeKeywordScores(kwResults)
	var extraIDs []string
	for _, r := range kwResults {
		if _, ok := out.records[r.ID]; !ok {
			extraIDs = append(extraIDs, r.ID)
		}
	}
	if len(extraIDs) == 0 {
		return out, nil
	}
	extra, err := e.storage.GetRecords(ctx, extraIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	var fullText []Scored
	for _, id := range extraIDs {
		rec, ok := extra[id]
		if !ok || !query.Range.Contains(rec.CapturedAt) {
			continue
		}
		out.records[id] = rec
		fullText = append(fullText, Scored{ID: id, Score: fullTextScale * normalized[id]})
	}
	sortScored(fullText, out.records)
	out.ranked = append(out.ranked, fullText...)
	return out, nil
}

// visualCandidates embeds the query with the text encoder and keeps nearest neighbours above
// the similarity cutoff whose record exists with a present vector.
func (e *Engine) visualCandidates(ctx context.Context, query *models.SearchQuery) (*candidates, error) {
	queryEmbedding, err := e.embedder.EmbedText(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	results, err := e.vectorIndex.Search(ctx, queryEmbedding, e.candidateLimit(query))
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	hits := FilterSimilarity(results, e.config.MinSimilarity)
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	records, err := e.storage.GetRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	out := &candidates{records: make(map[string]*models.Record, len(hits))}
	for _, h := range hits {
		rec, ok := records[h.ID]
		if !ok || rec.VectorState != models.VectorPresent || !query.Range.Contains(rec.CapturedAt) {
			continue
		}
		out.records[h.ID] = rec
		out.ranked = append(out.ranked, h)
	}
	sortScored(out.ranked, out.records)
	return out, nil
}

// Recent lists records newest first, optionally bounded by capture time.
func (e *Engine) Recent(ctx context.Context, tr models.TimeRange, offset, limit int) ([]*models.SearchResult, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: offset and limit must not be negative", models.ErrInvalidQuery)
	}
	if !tr.From.IsZero() && !tr.To.IsZero() && tr.To.Before(tr.From) {
		return nil, fmt.Errorf("%w: range end before start", models.ErrInvalidQuery)
	}
	if limit == 0 {
		limit = e.config.RecentLimit
	}
	if e.config.MaxLimit > 0 && limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}
	recs, err := e.storage.ListRecent(ctx, tr, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	out := make([]*models.SearchResult, 0, len(recs))
	for i, rec := range recs {
		res := e.toResult(rec, "")
		res.Rank = offset + i + 1
		out = append(out, res)
	}
	return out, nil
}

// Get returns a single record as a result.
func (e *Engine) Get(ctx context.Context, id string) (*models.SearchResult, error) {
	rec, err := e.storage.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.toResult(rec, ""), nil
}

func (e *Engine) toResult(rec *models.Record, query string) *models.SearchResult {
	return &models.SearchResult{
		ID:          rec.ID,
		Timestamp:   rec.CapturedAt,
		WindowTitle: rec.WindowTitle,
		TextSnippet: Snippet(rec.Text, query, e.config.SnippetLength),
		Thumbnail:   rec.ImageRef,
	}
}

// sortScored orders a single path's hits by score, newer capture first, then ID descending.
func sortScored(hits []Scored, records map[string]*models.Record) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ti, tj := records[hits[i].ID].CapturedAt, records[hits[j].ID].CapturedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].ID > hits[j].ID
	})
}

func capturedAtIndex(records map[string]*models.Record) map[string]int64 {
	out := make(map[string]int64, len(records))
	for id, rec := range records {
		out[id] = rec.CapturedAt.UnixNano()
	}
	return out
}

// IsClientError reports whether err was caused by an invalid query.
func IsClientError(err error) bool {
	return errors.Is(err, models.ErrInvalidQuery)
}
