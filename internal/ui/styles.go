package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Layout constants - single source of truth for all viewport dimensions
const (
	MinViewportWidth  = 80
	MaxViewportWidth  = 140
	DefaultWidth      = 110 // Used when terminal size is unknown
	DefaultHeight     = 32
	MinTableHeight    = 5
	TableHeight       = 20
	BorderPadding     = 2 // left/right padding inside borders
	chromeHeight      = 12
	helpBoxHeight     = 3
	minViewportHeight = 16
)

// Layout holds computed dimensions for the current terminal size
type Layout struct {
	ViewportWidth  int // clamped terminal width
	ViewportHeight int // terminal height, floored at minViewportHeight
	ContentWidth   int // ViewportWidth - border chars
	TableWidth     int // sum of column widths + separators
	InnerWidth     int // EXACT width for content inside borders
	TableHeight    int // visible table rows
}

// NewLayout creates a Layout from the terminal size, clamping to min/max
func NewLayout(terminalWidth, terminalHeight int) Layout {
	width := clamp(terminalWidth, MinViewportWidth, MaxViewportWidth)
	height := terminalHeight
	if height < minViewportHeight {
		height = minViewportHeight
	}
	return Layout{
		ViewportWidth:  width,
		ViewportHeight: height,
		ContentWidth:   width - 2, // minus border chars
		TableWidth:     width - 4, // minus border + padding
		InnerWidth:     width - 2,
		TableHeight:    clamp(height-chromeHeight, MinTableHeight, TableHeight),
	}
}

// DefaultLayout returns a layout using the default size
func DefaultLayout() Layout {
	return NewLayout(DefaultWidth, DefaultHeight)
}

// clamp restricts a value to the given range
func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Color palette - centralized color definitions
var (
	ColorBorder    = lipgloss.Color("196") // red
	ColorHighlight = lipgloss.Color("88")  // dark red background
	ColorText      = lipgloss.Color("15")  // bright white
	ColorAccent    = lipgloss.Color("226") // bright yellow
	ColorAccentDim = lipgloss.Color("220") // yellow (progress)
	ColorTextDim   = lipgloss.Color("241") // gray
	ColorSuccess   = lipgloss.Color("82")  // green
	ColorLink      = lipgloss.Color("86")  // cyan
)

// Common styles - reusable style definitions
var (
	// Border style for main viewport.
	// Content inside borders must use InnerWidth.
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	// Help box under the main viewport
	HelpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorText)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(ColorHighlight).
			Bold(true)

	NormalStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)

	HintStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Italic(true)

	// Accent style for highlighted text (yellow)
	AccentStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	ProgressStyle = lipgloss.NewStyle().
			Foreground(ColorAccentDim)

	StatsStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText)

	LinkStyle = lipgloss.NewStyle().
			Foreground(ColorLink).
			Underline(true)

	// Transient status line after an action
	StatusMsgStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Italic(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorBorder).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim).
			Bold(true)
)

// RenderError renders s in the error style
func RenderError(s string) string { return ErrorStyle.Render(s) }

// StringWidth returns the printable width of s, ignoring ANSI sequences
func StringWidth(s string) int {
	return lipgloss.Width(s)
}

// PadContentToHeight appends blank lines until content is targetHeight lines tall
func PadContentToHeight(content string, targetHeight int) string {
	lines := strings.Count(content, "\n") + 1
	if lines >= targetHeight {
		return content
	}
	return content + strings.Repeat("\n", targetHeight-lines)
}

// BuildTwoBoxView renders content in the red main box with a one-line help box
// beneath it. The main box grows to fill the terminal height.
func BuildTwoBoxView(content, helpText string, layout Layout) string {
	mainHeight := layout.ViewportHeight - helpBoxHeight - 2
	if mainHeight < 1 {
		mainHeight = 1
	}
	main := BorderStyle.
		Width(layout.InnerWidth).
		Render(PadContentToHeight(strings.TrimRight(content, "\n"), mainHeight))

	help := HelpBoxStyle.
		Width(layout.InnerWidth).
		Render(CenterText(HintStyle.Render(helpText), layout.InnerWidth))

	return lipgloss.JoinVertical(lipgloss.Left, main, help)
}

// ApplyTableStyles gives a table the app's header and a neutral selection;
// RenderTableWithSelection paints the visible highlight.
func ApplyTableStyles(t *table.Model) {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorBorder).
		BorderBottom(false).
		Bold(true).
		Foreground(ColorText)
	s.Selected = s.Selected.
		Foreground(ColorText).
		Bold(false)
	s.Cell = s.Cell.Foreground(ColorText)
	t.SetStyles(s)
}

// NewAppSpinner returns the white dot spinner used across views
func NewAppSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorText)
	return s
}

// NewAppTheme creates a huh theme matching the app's style guide
// White text, red highlights/selection
func NewAppTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().
		Foreground(ColorText).
		Bold(true)
	t.Blurred.Title = t.Focused.Title

	t.Focused.Description = lipgloss.NewStyle().
		Foreground(ColorText)
	t.Blurred.Description = t.Focused.Description

	t.Focused.Base = lipgloss.NewStyle().
		Foreground(ColorText)
	t.Blurred.Base = t.Focused.Base

	t.Focused.ErrorMessage = ErrorStyle
	t.Focused.ErrorIndicator = ErrorStyle

	t.Focused.FocusedButton = lipgloss.NewStyle().
		Foreground(ColorText).
		Background(ColorBorder).
		Bold(true).
		Padding(0, 1)

	t.Focused.BlurredButton = lipgloss.NewStyle().
		Foreground(ColorText).
		Padding(0, 1)

	t.Focused.TextInput.Cursor = lipgloss.NewStyle().
		Foreground(ColorBorder)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().
		Foreground(ColorTextDim)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().
		Foreground(ColorBorder)

	return t
}
