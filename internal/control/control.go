// Package control holds the capture pause/resume signal shared by the daemon, the CLI and the API.
package control

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// State is the capture control state observed by the watcher at the top of each cycle.
type State string

const (
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
)

// Controller exposes the pause signal. Paused is persisted as the existence of a file so
// separate processes agree on it; Stopping is process-local.
type Controller struct {
	pauseFile string
	stopping  atomic.Bool
}

// NewController returns a controller backed by pauseFile.
func NewController(pauseFile string) *Controller {
	return &Controller{pauseFile: pauseFile}
}

// State reports the current state. Stopping wins over Paused.
func (c *Controller) State() State {
	if c.stopping.Load() {
		return StateStopping
	}
	if c.Paused() {
		return StatePaused
	}
	return StateRunning
}

// Paused reports whether the pause file exists.
func (c *Controller) Paused() bool {
	_, err := os.Stat(c.pauseFile)
	return err == nil
}

// Pause creates the pause file. Pausing an already paused controller is a no-op.
func (c *Controller) Pause() error {
	if err := os.MkdirAll(filepath.Dir(c.pauseFile), 0755); err != nil {
		return fmt.Errorf("failed to create pause dir: %w", err)
	}
	f, err := os.OpenFile(c.pauseFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create pause file: %w", err)
	}
	return f.Close()
}

// Resume removes the pause file. Resuming a running controller is a no-op.
func (c *Controller) Resume() error {
	if err := os.Remove(c.pauseFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove pause file: %w", err)
	}
	return nil
}

// Stop moves the controller to Stopping. It cannot be undone.
func (c *Controller) Stop() {
	c.stopping.Store(true)
}

// PauseFile returns the path of the pause file.
func (c *Controller) PauseFile() string {
	return c.pauseFile
}
