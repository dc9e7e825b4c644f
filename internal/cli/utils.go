// Package cli provides output helpers for the rewind command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyperjump/rewind/internal/admin"
	"github.com/hyperjump/rewind/internal/models"
	"github.com/hyperjump/rewind/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const timeLayout = "2006-01-02 15:04:05"

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q (%s) in %dms\n\n",
		response.Total, response.Query, response.Mode, response.QueryTime)
	for _, result := range response.Results {
		writeOneResult(w, result, true)
	}
	return nil
}

// WriteRecords writes a recent-captures listing.
func WriteRecords(w io.Writer, results []*models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"results": results, "total": len(results)})
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No captures.")
		return nil
	}
	for _, result := range results {
		writeOneResult(w, result, false)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult, scored bool) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	if scored {
		fmt.Fprintf(w, "#%d [%s] Score: %.4f (Text: %.4f, Visual: %.4f)\n",
			result.Rank, result.Mode, result.Score, result.TextScore, result.VisualScore)
	}
	fmt.Fprintf(w, "%s  %s\n", result.Timestamp.Local().Format(timeLayout), result.ID)
	if result.WindowTitle != "" {
		fmt.Fprintf(w, "Window: %s\n", result.WindowTitle)
	}
	if result.Thumbnail != "" {
		fmt.Fprintf(w, "Image: %s\n", result.Thumbnail)
	}
	if result.TextSnippet != "" {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.TextSnippet, 200))
	}
	fmt.Fprintln(w)
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteStatus writes a status summary.
func WriteStatus(w io.Writer, st *admin.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Capture:      %s\n", st.CaptureState)
	fmt.Fprintf(w, "Records:      %d\n", st.Records)
	states := make([]string, 0, len(st.VectorStates))
	for state, n := range st.VectorStates {
		states = append(states, fmt.Sprintf("%s=%d", state, n))
	}
	sort.Strings(states)
	fmt.Fprintf(w, "Vectors:      %d (%s) [%s]\n", st.Vectors, st.VectorIndex, strings.Join(states, " "))
	dirs := make([]string, 0, len(st.Queue))
	for dir, n := range st.Queue {
		dirs = append(dirs, fmt.Sprintf("%s=%d", dir, n))
	}
	sort.Strings(dirs)
	fmt.Fprintf(w, "Queue:        %s\n", strings.Join(dirs, " "))
	fmt.Fprintf(w, "Disk usage:   %s\n", FormatBytes(st.DiskUsageBytes))
	return nil
}

// WriteWipeReport writes the outcome of a wipe.
func WriteWipeReport(w io.Writer, r *admin.WipeReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "Wiped %d records, %d vectors and %d frames in %s. Capture is paused.\n",
		r.Records, r.Vectors, r.Frames, r.Duration.Round(time.Millisecond))
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
