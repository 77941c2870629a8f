package ui

import (
	"fmt"
	"strings"

	"github.com/ethan-hawksley/yt-play/internal/engine"
	"github.com/ethan-hawksley/yt-play/internal/shared"
)

// RenderSummary formats the end-of-sync report. lipgloss drops the
// styling on non-terminal writers, so the same renderer serves the
// interactive view and piped output.
func RenderSummary(res *engine.Result) string {
	if res == nil {
		return ""
	}

	title := res.Title
	if title == "" {
		title = res.Key.String()
	}

	header := styles.ok.Render(fmt.Sprintf("✓ Sync complete: %s", title))
	if len(res.Failed) > 0 {
		header = styles.warn.Render(fmt.Sprintf("Sync finished with failures: %s", title))
	}

	mode := "refresh"
	if res.Mode == engine.FirstRun {
		mode = "first sync"
	}

	lines := []string{
		header,
		fmt.Sprintf("  Mode:     %s", mode),
		fmt.Sprintf("  Added:    %d", res.Added),
		fmt.Sprintf("  Removed:  %d", res.Removed),
		fmt.Sprintf("  Kept:     %d", res.Kept),
		fmt.Sprintf("  Duration: %s", shared.FormatDuration(res.Duration)),
	}

	if len(res.Failed) > 0 {
		lines = append(lines, styles.err.Render(fmt.Sprintf(
			"  Skipped %s after retries (will retry on the next sync):",
			shared.Pluralize(len(res.Failed), "track", "tracks"),
		)))
		for _, f := range res.Failed {
			lines = append(lines, fmt.Sprintf("    ✗ %s [%s]: %v", f.Title, f.VideoID, f.Err))
		}
	}

	return strings.Join(lines, "\n")
}
