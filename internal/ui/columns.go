package ui

// columns.go provides generic column width calculation for bubbles/table.
// Use ColumnSpec and CalculateColumns() instead of duplicating percentage-based math.

import (
	"github.com/charmbracelet/bubbles/table"
)

// =============================================================================
// Column Specification Types
// =============================================================================

// ColumnSpec defines a table column with flexible or fixed width.
// Use FlexRatio for columns that should expand/contract with terminal width.
// Use FixedWidth for columns that should maintain constant width.
type ColumnSpec struct {
	Title      string
	MinWidth   int // Minimum width (0 = no minimum)
	FixedWidth int // If > 0, use this exact width (ignores FlexRatio)
	FlexRatio  int // Relative ratio for flexible columns (0 = fixed-only)
}

// =============================================================================
// Column Calculation
// =============================================================================

// CalculateColumns computes column widths from specs.
// Flexible columns split remaining space by ratio after fixed columns are allocated.
//
// Example:
//
//	columns := CalculateColumns([]ColumnSpec{
//	    {Title: "Title", FlexRatio: 60, MinWidth: 30},
//	    {Title: "Authors", FlexRatio: 40, MinWidth: 20},
//	    {Title: "Published", FixedWidth: 16},
//	}, layout.TableWidth)
//
// This allocates 16 chars to "Published", then splits remaining space
// 60:40 between "Title" and "Authors", respecting minimums.
func CalculateColumns(specs []ColumnSpec, totalWidth int) []table.Column {
	if totalWidth < 50 {
		totalWidth = 50
	}

	// First pass: allocate fixed widths and sum flex ratios
	fixedTotal := 0
	flexTotal := 0
	for _, s := range specs {
		if s.FixedWidth > 0 {
			fixedTotal += s.FixedWidth
		} else {
			flexTotal += s.FlexRatio
		}
	}

	remaining := totalWidth - fixedTotal
	if remaining < 0 {
		remaining = 0
	}

	// Second pass: calculate final widths
	columns := make([]table.Column, len(specs))
	for i, s := range specs {
		var width int
		if s.FixedWidth > 0 {
			width = s.FixedWidth
		} else if flexTotal > 0 {
			width = remaining * s.FlexRatio / flexTotal
		}

		// Apply minimum width constraint
		if s.MinWidth > 0 && width < s.MinWidth {
			width = s.MinWidth
		}

		columns[i] = table.Column{Title: s.Title, Width: width}
	}

	return columns
}

// =============================================================================
// Pre-defined Column Layouts
// =============================================================================

// RecordColumns returns column specs for the results table.
func RecordColumns() []ColumnSpec {
	return []ColumnSpec{
		{Title: "#", FixedWidth: 5},
		{Title: "Title", FlexRatio: 60, MinWidth: 30},
		{Title: "Authors", FlexRatio: 40, MinWidth: 20},
		{Title: "Published", FixedWidth: 16},
	}
}

// CellPadding is the horizontal padding bubbles/table adds around every cell.
const CellPadding = 2

// RecordTableColumns sizes RecordColumns to the layout, leaving room for cell padding.
func RecordTableColumns(layout Layout) []table.Column {
	specs := RecordColumns()
	return CalculateColumns(specs, layout.TableWidth-CellPadding*len(specs))
}

// =============================================================================
// Column Width Helpers
// =============================================================================

// ClampWidth ensures width is within min/max bounds.
func ClampWidth(width, minWidth, maxWidth int) int {
	if minWidth > 0 && width < minWidth {
		return minWidth
	}
	if maxWidth > 0 && width > maxWidth {
		return maxWidth
	}
	return width
}
