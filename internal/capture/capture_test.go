package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperjump/rewind/internal/control"
	"github.com/hyperjump/rewind/internal/models"
)

type fakeWindow struct {
	info WindowInfo
	err  error
}

func (f *fakeWindow) ActiveWindow(ctx context.Context) (WindowInfo, error) {
	return f.info, f.err
}

type fakeScreen struct {
	frames [][]byte
	calls  int
	err    error
}

func (f *fakeScreen) Capture(ctx context.Context) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	frame := f.frames[0]
	if len(f.frames) > 1 {
		f.frames = f.frames[1:]
	}
	return frame, nil
}

type fakeQueue struct {
	metas []*models.FrameMeta
	err   error
}

func (f *fakeQueue) Enqueue(meta *models.FrameMeta, frame []byte) error {
	if f.err != nil {
		return f.err
	}
	f.metas = append(f.metas, meta)
	return nil
}

type fixedState control.State

func (s fixedState) State() control.State { return control.State(s) }

// blocks renders a 64x64 image of random 8x8 gray blocks; different seeds give unrelated frames.
func blocks(t *testing.T, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for by := 0; by < 8; by++ {
		for bx := 0; bx < 8; bx++ {
			v := color.Gray{Y: uint8(rng.Intn(256))}
			for y := by * 8; y < by*8+8; y++ {
				for x := bx * 8; x < bx*8+8; x++ {
					img.SetGray(x, y, v)
				}
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("frame-%02d", n), nil
	}
}

func newTestWatcher(win WindowSource, screen Screen, q Enqueuer, state StateSource, opts Options, now *time.Time) *Watcher {
	return NewWatcher(win, screen, q, state, opts,
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return *now }))
}

func TestWatcher_NearDuplicatesCollapse(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	frame := blocks(t, 1)
	screen := &fakeScreen{frames: [][]byte{frame}}
	q := &fakeQueue{}
	w := newTestWatcher(&fakeWindow{info: WindowInfo{Title: "editor"}}, screen, q, fixedState(control.StateRunning),
		Options{Threshold: 5}, &now)

	outcomes := []Outcome{}
	for i := 0; i < 5; i++ {
		o, err := w.Cycle(context.Background())
		require.NoError(t, err)
		outcomes = append(outcomes, o)
		now = now.Add(2 * time.Second)
	}
	require.Equal(t, []Outcome{OutcomeEnqueued, OutcomeDiscarded, OutcomeDiscarded, OutcomeDiscarded, OutcomeDiscarded}, outcomes)
	require.Len(t, q.metas, 1)
	require.Equal(t, "editor", q.metas[0].WindowTitle)
	require.Len(t, q.metas[0].Fingerprint, 16)
	require.Equal(t, Stats{Enqueued: 1, Discarded: 4}, w.Stats())
}

func TestWatcher_DistinctFramesAreEnqueued(t *testing.T) {
	now := time.Now()
	screen := &fakeScreen{frames: [][]byte{blocks(t, 1), blocks(t, 2)}}
	q := &fakeQueue{}
	w := newTestWatcher(&fakeWindow{info: WindowInfo{Title: "editor"}}, screen, q, fixedState(control.StateRunning),
		Options{Threshold: 5}, &now)

	for i := 0; i < 2; i++ {
		o, err := w.Cycle(context.Background())
		require.NoError(t, err)
		require.Equal(t, OutcomeEnqueued, o)
	}
	require.Len(t, q.metas, 2)
	require.NotEqual(t, q.metas[0].ID, q.metas[1].ID)
}

func TestWatcher_DedupWindowExpires(t *testing.T) {
	now := time.Now()
	screen := &fakeScreen{frames: [][]byte{blocks(t, 1)}}
	q := &fakeQueue{}
	w := newTestWatcher(&fakeWindow{}, screen, q, fixedState(control.StateRunning),
		Options{Threshold: 5, DedupWindow: time.Minute}, &now)

	o, _ := w.Cycle(context.Background())
	require.Equal(t, OutcomeEnqueued, o)
	now = now.Add(30 * time.Second)
	o, _ = w.Cycle(context.Background())
	require.Equal(t, OutcomeDiscarded, o)
	now = now.Add(2 * time.Minute)
	o, _ = w.Cycle(context.Background())
	require.Equal(t, OutcomeEnqueued, o)
}

func TestWatcher_ZeroThresholdKeepsEverything(t *testing.T) {
	now := time.Now()
	screen := &fakeScreen{frames: [][]byte{blocks(t, 1)}}
	q := &fakeQueue{}
	w := newTestWatcher(&fakeWindow{}, screen, q, fixedState(control.StateRunning), Options{Threshold: 0}, &now)
	for i := 0; i < 3; i++ {
		o, err := w.Cycle(context.Background())
		require.NoError(t, err)
		require.Equal(t, OutcomeEnqueued, o)
	}
}

func TestWatcher_BlacklistedWindowNeverCaptured(t *testing.T) {
	now := time.Now()
	screen := &fakeScreen{frames: [][]byte{blocks(t, 1)}}
	q := &fakeQueue{}
	win := &fakeWindow{info: WindowInfo{Title: "Bank login - Mozilla Firefox (Private Browsing)"}}
	w := newTestWatcher(win, screen, q, fixedState(control.StateRunning),
		Options{Threshold: 5, Blacklist: []string{"Private Browsing"}}, &now)

	for i := 0; i < 3; i++ {
		o, err := w.Cycle(context.Background())
		require.NoError(t, err)
		require.Equal(t, OutcomeBlocked, o)
	}
	require.Zero(t, screen.calls, "blacklisted windows must not be captured")
	require.Empty(t, q.metas)

	win.info = WindowInfo{Title: "vault", Class: "Bitwarden"}
	w.blacklist = NewBlacklist([]string{"bitwarden"})
	o, _ := w.Cycle(context.Background())
	require.Equal(t, OutcomeBlocked, o)
}

func TestWatcher_PausedAndStopping(t *testing.T) {
	now := time.Now()
	screen := &fakeScreen{frames: [][]byte{blocks(t, 1)}}
	q := &fakeQueue{}
	w := newTestWatcher(&fakeWindow{}, screen, q, fixedState(control.StatePaused), Options{}, &now)
	o, err := w.Cycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomePaused, o)

	w.state = fixedState(control.StateStopping)
	o, _ = w.Cycle(context.Background())
	require.Equal(t, OutcomeStopping, o)
	require.NoError(t, w.Run(context.Background()), "Run returns once stopping")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.state = fixedState(control.StateRunning)
	o, _ = w.Cycle(ctx)
	require.Equal(t, OutcomeStopping, o)
	require.Zero(t, screen.calls)
}

func TestWatcher_FailuresSkipTheCycle(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		window *fakeWindow
		screen *fakeScreen
		queue  *fakeQueue
	}{
		{"window query", &fakeWindow{err: errors.New("hyprctl missing")}, &fakeScreen{frames: [][]byte{blocks(t, 1)}}, &fakeQueue{}},
		{"screenshot", &fakeWindow{}, &fakeScreen{err: errors.New("grim failed")}, &fakeQueue{}},
		{"undecodable", &fakeWindow{}, &fakeScreen{frames: [][]byte{[]byte("not an image")}}, &fakeQueue{}},
		{"enqueue", &fakeWindow{}, &fakeScreen{frames: [][]byte{blocks(t, 1)}}, &fakeQueue{err: errors.New("disk full")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWatcher(tt.window, tt.screen, tt.queue, fixedState(control.StateRunning), Options{Threshold: 5}, &now)
			o, err := w.Cycle(context.Background())
			require.Error(t, err)
			require.Equal(t, OutcomeFailed, o)
			require.Empty(t, tt.queue.metas)
			require.True(t, w.lastPrint.IsZero(), "a failed cycle must not become the reference frame")
		})
	}
}

func TestParseWindow(t *testing.T) {
	info, err := parseWindow([]byte(`{"address":"0x1","class":"kitty","title":"  nvim main.go "}`))
	require.NoError(t, err)
	require.Equal(t, WindowInfo{Title: "nvim main.go", Class: "kitty"}, info)

	info, err = parseWindow([]byte("Plain Title\n"))
	require.NoError(t, err)
	require.Equal(t, "Plain Title", info.Title)

	_, err = parseWindow([]byte("{broken"))
	require.Error(t, err)
}

func TestCommandSources(t *testing.T) {
	var argv []string
	run := func(ctx context.Context, a []string, stdin []byte) ([]byte, error) {
		argv = a
		return []byte(`{"title":"t"}`), nil
	}
	info, err := NewCommandWindowSource([]string{"hyprctl", "activewindow", "-j"}, run).ActiveWindow(context.Background())
	require.NoError(t, err)
	require.Equal(t, "t", info.Title)
	require.Equal(t, "hyprctl", argv[0])

	empty := func(ctx context.Context, a []string, stdin []byte) ([]byte, error) { return nil, nil }
	_, err = NewCommandScreen([]string{"grim", "-"}, empty).Capture(context.Background())
	require.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a, err := png.Decode(bytes.NewReader(blocks(t, 1)))
	require.NoError(t, err)
	b, err := png.Decode(bytes.NewReader(blocks(t, 2)))
	require.NoError(t, err)

	fa, err := NewFingerprint(a)
	require.NoError(t, err)
	fb, err := NewFingerprint(b)
	require.NoError(t, err)

	require.Zero(t, fa.Distance(fa))
	require.Greater(t, fa.Distance(fb), 5)
	require.Equal(t, MaxDistance, fa.Distance(Fingerprint{}))
	require.Equal(t, 3, FingerprintFromUint64(0b111).Distance(FingerprintFromUint64(0)))
}

func TestWatcher_QuiesceHoldsCycles(t *testing.T) {
	now := time.Now()
	screen := &fakeScreen{frames: [][]byte{blocks(t, 1)}}
	q := &fakeQueue{}
	w := newTestWatcher(&fakeWindow{info: WindowInfo{Title: "shell"}}, screen, q,
		fixedState(control.StateRunning), Options{Threshold: 5}, &now)

	release := w.Quiesce()
	done := make(chan Outcome, 1)
	go func() {
		o, _ := w.Cycle(context.Background())
		done <- o
	}()
	select {
	case <-done:
		t.Fatal("cycle ran while capture was quiesced")
	case <-time.After(100 * time.Millisecond):
	}
	require.Empty(t, q.metas)

	release()
	require.Equal(t, OutcomeEnqueued, <-done)
	require.Len(t, q.metas, 1)

	w.Reset()
	o, err := w.Cycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeEnqueued, o, "an unchanged screen is accepted after Reset")
}
