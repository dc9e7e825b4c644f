package e2e

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSession(t *testing.T) {
	s := BuildSession(40)
	require.Len(t, s.Frames, 40)

	var blocked, dups int
	titles := map[string]bool{}
	var lastCaptured int64
	for i, f := range s.Frames {
		if f.Blocked {
			blocked++
			require.Equal(t, "bitwarden", f.Class)
		}
		if f.Duplicate {
			dups++
			require.Equal(t, lastCaptured, f.Seed, "frame %d should repeat the last captured frame", i)
		}
		if !f.Blocked {
			lastCaptured = f.Seed
		}
		require.False(t, titles[f.Title], "duplicate title %q", f.Title)
		titles[f.Title] = true
	}
	require.Equal(t, 5, blocked)
	require.Equal(t, 6, dups)
	require.Equal(t, 40-blocked-dups, s.Stored())
	require.Len(t, s.TestCases, s.Stored())
	require.Len(t, s.Forbidden, blocked+dups)
}

func TestRenderFrame(t *testing.T) {
	a, err := RenderFrame(1)
	require.NoError(t, err)
	b, err := RenderFrame(1)
	require.NoError(t, err)
	c, err := RenderFrame(2)
	require.NoError(t, err)
	require.Equal(t, FrameKey(a), FrameKey(b))
	require.NotEqual(t, FrameKey(a), FrameKey(c))
}
