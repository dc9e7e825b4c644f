package capture

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hyperjump/rewind/pkg/utils"
)

// WindowInfo describes the focused window.
type WindowInfo struct {
	Title string `json:"title"`
	Class string `json:"class"`
}

// WindowSource reports the currently focused window.
type WindowSource interface {
	ActiveWindow(ctx context.Context) (WindowInfo, error)
}

// CommandWindowSource runs a window-query command such as `hyprctl activewindow -j`.
// JSON output is parsed for title and class; any other output is taken as the title.
type CommandWindowSource struct {
	argv []string
	run  utils.CommandRunner
}

// NewCommandWindowSource returns a WindowSource backed by argv. A nil run uses utils.RunCommand.
func NewCommandWindowSource(argv []string, run utils.CommandRunner) *CommandWindowSource {
	if run == nil {
		run = utils.RunCommand
	}
	return &CommandWindowSource{argv: argv, run: run}
}

// ActiveWindow queries the focused window.
func (s *CommandWindowSource) ActiveWindow(ctx context.Context) (WindowInfo, error) {
	out, err := s.run(ctx, s.argv, nil)
	if err != nil {
		return WindowInfo{}, fmt.Errorf("window query: %w", err)
	}
	return parseWindow(out)
}

func parseWindow(out []byte) (WindowInfo, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var info WindowInfo
		if err := json.Unmarshal(trimmed, &info); err != nil {
			return WindowInfo{}, fmt.Errorf("window query: bad json: %w", err)
		}
		info.Title = strings.TrimSpace(info.Title)
		return info, nil
	}
	return WindowInfo{Title: string(trimmed)}, nil
}

// Screen grabs the current screen contents as encoded image bytes.
type Screen interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CommandScreen runs a screenshot command that writes an image to stdout, such as `grim -t png -`.
type CommandScreen struct {
	argv []string
	run  utils.CommandRunner
}

// NewCommandScreen returns a Screen backed by argv. A nil run uses utils.RunCommand.
func NewCommandScreen(argv []string, run utils.CommandRunner) *CommandScreen {
	if run == nil {
		run = utils.RunCommand
	}
	return &CommandScreen{argv: argv, run: run}
}

// Capture takes a screenshot.
func (s *CommandScreen) Capture(ctx context.Context) ([]byte, error) {
	out, err := s.run(ctx, s.argv, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("screenshot: empty output")
	}
	return out, nil
}
