package models

import (
	"fmt"
	"strings"
	"time"
)

// Default result limits when the caller does not configure any.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// SearchMode selects which retrieval paths a query runs.
type SearchMode string

const (
	ModeText   SearchMode = "text"
	ModeVisual SearchMode = "visual"
	ModeHybrid SearchMode = "hybrid"
)

// ParseMode maps a user-supplied mode name to a SearchMode. An empty name means hybrid.
func ParseMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeHybrid):
		return ModeHybrid, nil
	case string(ModeText):
		return ModeText, nil
	case string(ModeVisual):
		return ModeVisual, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, s)
}

// SearchQuery represents a search request with an optional capture-time range.
type SearchQuery struct {
	Query string     `json:"query"`
	Mode  SearchMode `json:"mode"`
	Limit int        `json:"limit,omitempty"`
	Range TimeRange  `json:"range,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// defaultLimit and maxLimit fall back to DefaultLimit and MaxLimit when not positive.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	mode, err := ParseMode(string(q.Mode))
	if err != nil {
		return err
	}
	q.Mode = mode
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidQuery)
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if !q.Range.From.IsZero() && !q.Range.To.IsZero() && q.Range.To.Before(q.Range.From) {
		return fmt.Errorf("%w: range end before start", ErrInvalidQuery)
	}
	return nil
}

// ParseTimeBound parses a range bound given as RFC 3339 or as a bare date (YYYY-MM-DD, local
// time). A bare date used as an end bound covers the whole day. Empty input is the zero time.
func ParseTimeBound(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q (want RFC 3339 or YYYY-MM-DD)", ErrInvalidQuery, s)
	}
	if end {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return d, nil
}

// ParseTimeRange parses both bounds of a range.
func ParseTimeRange(from, to string) (TimeRange, error) {
	var r TimeRange
	var err error
	if r.From, err = ParseTimeBound(from, false); err != nil {
		return r, err
	}
	if r.To, err = ParseTimeBound(to, true); err != nil {
		return r, err
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, fmt.Errorf("%w: range end before start", ErrInvalidQuery)
	}
	return r, nil
}
