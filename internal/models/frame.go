package models

import (
	"fmt"
	"time"
)

// FrameMeta is the sidecar written next to every accepted frame in the intake queue.
type FrameMeta struct {
	ID            string    `json:"id"`
	CapturedAt    time.Time `json:"captured_at"`
	WindowTitle   string    `json:"window_title"`
	Fingerprint   string    `json:"fingerprint"`
	Attempts      int       `json:"attempts,omitempty"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Validate checks the fields a worker relies on.
func (m *FrameMeta) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("frame meta: missing id")
	}
	if m.CapturedAt.IsZero() {
		return fmt.Errorf("frame meta %s: missing capture time", m.ID)
	}
	return nil
}
