package ui

// view_helpers.go provides common View() rendering helpers.
// Use these to build consistent two-box layouts across all views.

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// =============================================================================
// Table Rendering with Full-Width Selection
// =============================================================================

// RenderTableWithSelection renders a bubbles table with full-width selection highlight.
// The table's Selected style should use a neutral background,
// and this function applies the visible selection styling.
//
// bubbles/table View() output:
// - Line 0: Header row
// - Line 1+: Data rows (only visible rows due to viewport scrolling)
//
// The visible cursor row is derived from the table's height and cursor so the
// highlight follows scrolling.
func RenderTableWithSelection(t table.Model, layout Layout) string {
	lines := strings.Split(t.View(), "\n")
	result := make([]string, 0, len(lines)+1)

	cursor := t.Cursor()
	height := t.Height()
	totalRows := len(t.Rows())

	// Match the bubbles viewport: it scrolls only once the cursor leaves it
	start := 0
	if totalRows > height {
		if cursor >= height {
			start = cursor - height + 1
		}
		if maxStart := totalRows - height; start > maxStart {
			start = maxStart
		}
	}
	visibleCursorIndex := cursor - start

	for i, line := range lines {
		if i == 0 {
			result = append(result, NormalStyle.Render(line))
			result = append(result, FullWidthDivider(layout.InnerWidth))
			continue
		}

		if i-1 == visibleCursorIndex && totalRows > 0 {
			// Strip escape codes first so embedded resets don't kill the background
			clean := stripEscapeCodes(line)
			if w := StringWidth(clean); w < layout.InnerWidth {
				clean += strings.Repeat(" ", layout.InnerWidth-w)
			} else if w > layout.InnerWidth {
				clean = truncateToWidth(clean, layout.InnerWidth)
			}
			result = append(result, SelectedStyle.Render(clean))
			continue
		}

		result = append(result, NormalStyle.Render(line))
	}

	return strings.Join(result, "\n")
}

// CenterText centers text within given width.
func CenterText(text string, width int) string {
	textW := StringWidth(text)
	if textW >= width {
		return text
	}
	return strings.Repeat(" ", (width-textW)/2) + text
}

// FullWidthDivider returns a horizontal divider spanning the inner width.
func FullWidthDivider(innerWidth int) string {
	return strings.Repeat("─", innerWidth)
}

// wrapText word-wraps plain text to width
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}

// truncateToWidth cuts s to width cells, marking the cut with an ellipsis
func truncateToWidth(s string, width int) string {
	return ansi.Truncate(s, width, "…")
}

func stripEscapeCodes(s string) string {
	return ansi.Strip(s)
}
