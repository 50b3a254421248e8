package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AdityaGoyal-512/notebook-runner/internal/history"
	"github.com/AdityaGoyal-512/notebook-runner/internal/ui"
)

// renderHistory lists the latest runs, newest first, under a title with the
// totals for the whole process.
func renderHistory(runs []history.Run, counts map[history.Status]int, width int) []string {
	title := ui.PanelTitleStyle.Render(fmt.Sprintf("RECENT RUNS (%d)", len(runs)))
	if total := runTotal(counts); total > 0 {
		ok := counts[history.StatusOK]
		title += ui.DimStyle.Render(fmt.Sprintf("  %d total · %d ok · %d failed", total, ok, total-ok))
	}
	lines := []string{title}
	if len(runs) == 0 {
		return append(lines, ui.DimStyle.Render("  No runs yet"))
	}

	for _, r := range runs {
		ts := ui.TimestampStyle.Render(r.FinishedAt.Format("[15:04:05]"))
		status := renderRunStatus(r.Status)
		head := fmt.Sprintf("notebook %d %s", r.Notebook, ui.DimStyle.Render(r.Duration().Round(100*time.Millisecond).String()))
		line := "  " + ts + " " + status + " " + head
		if r.Summary != "" {
			room := width - lipgloss.Width(line) - 2
			if room > 10 {
				line += ui.DimStyle.Render("  " + ui.TruncateToWidth(r.Summary, room))
			}
		}
		lines = append(lines, line)
	}
	return lines
}

func runTotal(counts map[history.Status]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func renderRunStatus(s history.Status) string {
	switch s {
	case history.StatusOK:
		return ui.SuccessStyle.Render("✓")
	case history.StatusFailed:
		return ui.ErrorStyle.Render("✗")
	default:
		return ui.ErrorTextStyle.Render("!")
	}
}

func renderErrorBar(message string) string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(message)
}

func renderFooter(hints ...[2]string) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, ui.FooterKey(h[0], h[1]))
	}
	return strings.Join(parts, "  ")
}
