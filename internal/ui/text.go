// Package ui holds the terminal styles and layout helpers shared by both
// front-ends.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// PadRight pads s with spaces to width visible cells, ignoring ANSI codes.
func PadRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

// TruncateToWidth cuts s to width terminal cells, ending with an ellipsis
// when shortened. Wide runes count as two cells.
func TruncateToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// WrapText breaks text into lines of at most width characters on word
// boundaries. Newlines in text are kept as paragraph breaks.
func WrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len([]rune(current))+1+len([]rune(word)) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// Divider returns a horizontal rule width cells wide.
func Divider(width int) string {
	return DividerStyle.Render(strings.Repeat("─", max(0, width)))
}
