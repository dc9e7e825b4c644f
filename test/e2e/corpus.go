package e2e

import (
	"fmt"
)

// SessionFrame is one scripted capture cycle: the focused window, the pixels on screen and the
// text OCR would read from them.
type SessionFrame struct {
	Title string
	Class string
	Seed  int64
	Text  string
	// Blocked frames come from a blacklisted window and must never be stored.
	Blocked bool
	// Duplicate frames repeat the last captured frame's pixels and must be dropped.
	Duplicate bool
}

// QueryTestCase is a query and the window titles that must appear among its results.
type QueryTestCase struct {
	Query          string
	ExpectedTitles []string
	Description    string
}

// Session is a scripted sequence of frames plus the queries to check afterwards.
type Session struct {
	Frames    []SessionFrame
	TestCases []QueryTestCase
	// Forbidden holds phrases that appear only on blocked or duplicate frames.
	Forbidden []string
}

// Stored returns the number of frames that should become records.
func (s *Session) Stored() int {
	n := 0
	for _, f := range s.Frames {
		if !f.Blocked && !f.Duplicate {
			n++
		}
	}
	return n
}

var topics = []struct {
	app   string
	class string
	words string
}{
	{"Editor", "code", "func handler returns error wrapped with context"},
	{"Terminal", "kitty", "go test ./... ok package cached"},
	{"Browser", "firefox", "release notes changelog breaking changes"},
	{"Mail", "thunderbird", "invoice attached please confirm payment"},
	{"Slides", "impress", "quarterly roadmap milestones revenue chart"},
}

// BuildSession scripts n frames. Every seventh frame is a password manager window, every fifth
// repeats the pixels of the last frame that was actually captured, and every frame carries a unique ticket phrase so
// queries can assert exactly which captures were kept.
func BuildSession(n int) *Session {
	s := &Session{}
	var prevSeed int64
	for i := 0; i < n; i++ {
		t := topics[i%len(topics)]
		ticket := fmt.Sprintf("ticket RW%04d", i)
		f := SessionFrame{
			Title: fmt.Sprintf("%s - workspace %03d", t.app, i),
			Class: t.class,
			Seed:  int64(1000 + i),
			Text:  fmt.Sprintf("%s\n%s", t.words, ticket),
		}
		switch {
		case i > 0 && i%7 == 0:
			f.Title = fmt.Sprintf("Bitwarden - vault %03d", i)
			f.Class = "bitwarden"
			f.Blocked = true
		case i > 0 && i%5 == 0:
			f.Seed = prevSeed
			f.Duplicate = true
		}
		if f.Blocked || f.Duplicate {
			s.Forbidden = append(s.Forbidden, ticket)
		} else {
			s.TestCases = append(s.TestCases, QueryTestCase{
				Query:          ticket,
				ExpectedTitles: []string{f.Title},
				Description:    fmt.Sprintf("unique phrase of frame %d", i),
			})
		}
		if !f.Blocked {
			prevSeed = f.Seed
		}
		s.Frames = append(s.Frames, f)
	}
	return s
}
