package ui

// base_model.go provides common TUI helpers for Bubble Tea models.

import (
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// InitTable creates and configures a table with proper styling and dimensions.
// Use this instead of manually calling table.New() to ensure consistent setup.
//
// Example:
//
//	columns := RecordTableColumns(layout)
//	m.table = InitTable(columns, rows, layout)
func InitTable(columns []table.Column, rows []table.Row, layout Layout) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(layout.TableHeight),
	)

	ApplyTableStyles(&t)

	// Ensure cursor starts at the top for proper viewport positioning
	t.GotoTop()

	return t
}

// StandardInit returns the standard Init command for table models.
func StandardInit() tea.Cmd {
	return tea.WindowSize()
}

// IsQuitKey reports whether key quits from a top-level view.
// esc is left to the caller since most views use it to go back.
func IsQuitKey(key string) bool {
	return key == "q" || key == "ctrl+c"
}
