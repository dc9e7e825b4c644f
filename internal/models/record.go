// Package models defines core data structures for captured frames, records, queries, and search results.
package models

import "time"

// VectorState tracks the vector portion of a record.
type VectorState string

const (
	// VectorPending means the embedding has not been written yet and may still be retried.
	VectorPending VectorState = "pending"
	// VectorPresent means the vector store holds an embedding keyed by the record id.
	VectorPresent VectorState = "present"
	// VectorAbsent means embedding was given up on; the record is text-searchable only.
	VectorAbsent VectorState = "absent"
)

// Valid reports whether s is one of the known vector states.
func (s VectorState) Valid() bool {
	switch s {
	case VectorPending, VectorPresent, VectorAbsent:
		return true
	}
	return false
}

// Record is the durable unit for one accepted capture.
// Its vector portion lives in the vector store under the same ID.
type Record struct {
	ID            string      `json:"id" db:"id"`
	CapturedAt    time.Time   `json:"timestamp" db:"captured_at"`
	WindowTitle   string      `json:"window_title" db:"window_title"`
	Text          string      `json:"text" db:"text"`
	ImageRef      string      `json:"thumbnail_ref" db:"image_ref"`
	Fingerprint   string      `json:"fingerprint,omitempty" db:"fingerprint"`
	VectorState   VectorState `json:"vector_state" db:"vector_state"`
	EmbedAttempts int         `json:"embed_attempts" db:"embed_attempts"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// TimeRange limits results to records captured in [From, To]. Zero values are open ends.
type TimeRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// IsZero reports whether the range places no constraint.
func (r TimeRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
