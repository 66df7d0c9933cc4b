package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/dustin/go-humanize"

	"github.com/thesavant42/arxived/internal/models"
)

// PageViewBuilder assembles the main box of an arxived screen and renders it
// above the help box.
//
//	return NewPageView(m.Layout).
//	    Header(`Top matches for "Machine Learning"`).
//	    Summary(ResultsSummary{Shown: 10, Matching: 10, Stored: 10}).
//	    Table(m.table).
//	    Status(m.StatusMsg).
//	    Help("↑/↓: navigate | Enter: details").
//	    Build()
type PageViewBuilder struct {
	layout     Layout
	content    strings.Builder
	helpText   string
	hadContent bool
}

// NewPageView starts a page for layout
func NewPageView(layout Layout) *PageViewBuilder {
	return &PageViewBuilder{layout: layout}
}

func (b *PageViewBuilder) line(s string) *PageViewBuilder {
	b.content.WriteString(s)
	b.content.WriteString("\n")
	b.hadContent = true
	return b
}

// Header adds the page title and a full-width divider.
// Long titles (paper titles in the detail view) wrap to the inner width.
func (b *PageViewBuilder) Header(title string) *PageViewBuilder {
	b.line(TitleStyle.Render(wrapText(title, b.layout.InnerWidth)))
	return b.line(FullWidthDivider(b.layout.InnerWidth))
}

// Spacing adds blank lines
func (b *PageViewBuilder) Spacing(lines int) *PageViewBuilder {
	b.content.WriteString(strings.Repeat("\n", lines))
	return b
}

// DimText adds a dimmed line
func (b *PageViewBuilder) DimText(text string) *PageViewBuilder {
	return b.line(DimStyle.Render(text))
}

// CustomContent adds pre-rendered content as is
func (b *PageViewBuilder) CustomContent(content string) *PageViewBuilder {
	b.content.WriteString(content)
	b.hadContent = true
	return b
}

// ResultsSummary describes what the results table is showing
type ResultsSummary struct {
	Query    models.Query
	Shown    int // rows in the table
	Matching int // stored records matching Filter
	Stored   int // every stored record; exports write all of them
	Filter   string
	StoredAt time.Time
}

// Summary adds the accented line above the results table
func (b *PageViewBuilder) Summary(s ResultsSummary) *PageViewBuilder {
	parts := []string{fmt.Sprintf("Showing %d of %s entries", s.Shown, humanize.Comma(int64(s.Matching)))}
	if s.Filter != "" {
		parts = append(parts, fmt.Sprintf("Filter: %q", s.Filter))
	}
	if s.Query.HasWindow() {
		parts = append(parts, fmt.Sprintf("%s to %s",
			s.Query.Start.Format(models.DisplayDateFormat), s.Query.End.Format(models.DisplayDateFormat)))
	}
	parts = append(parts, fmt.Sprintf("Download as CSV for all %s results", humanize.Comma(int64(s.Stored))))
	if !s.StoredAt.IsZero() {
		parts = append(parts, "Fetched "+humanize.Time(s.StoredAt))
	}
	return b.line(AccentStyle.Render(strings.Join(parts, "  |  ")))
}

// Field adds a labelled block, wrapping value to the inner width
func (b *PageViewBuilder) Field(label string, value string) *PageViewBuilder {
	if b.hadContent {
		b.content.WriteString("\n")
	}
	b.line(LabelStyle.Render(" " + label))
	width := ClampWidth(b.layout.InnerWidth-4, 40, 0)
	for _, l := range strings.Split(wrapText(value, width), "\n") {
		b.line(" " + NormalStyle.Render(l))
	}
	return b
}

// Link adds a labelled, underlined URL
func (b *PageViewBuilder) Link(label, url string) *PageViewBuilder {
	if b.hadContent {
		b.content.WriteString("\n")
	}
	b.line(LabelStyle.Render(" " + label))
	return b.line(" " + LinkStyle.Render(url))
}

// Table adds the records table with full-width selection highlighting
func (b *PageViewBuilder) Table(t table.Model) *PageViewBuilder {
	if b.hadContent {
		b.content.WriteString("\n")
	}
	b.content.WriteString(RenderTableWithSelection(t, b.layout))
	b.hadContent = true
	return b
}

// Status adds the transient status line, if any
func (b *PageViewBuilder) Status(msg string) *PageViewBuilder {
	if msg == "" {
		return b
	}
	if b.hadContent {
		b.content.WriteString("\n")
	}
	return b.line(StatusMsgStyle.Render(msg))
}

// Error adds an error line
func (b *PageViewBuilder) Error(err error) *PageViewBuilder {
	if err == nil {
		return b
	}
	if b.hadContent {
		b.content.WriteString("\n")
	}
	return b.line(RenderError("Error: " + err.Error()))
}

// Help sets the footer text
func (b *PageViewBuilder) Help(helpText string) *PageViewBuilder {
	b.helpText = helpText
	return b
}

// Build renders the main box and the help box
func (b *PageViewBuilder) Build() string {
	return BuildTwoBoxView(b.content.String(), b.helpText, b.layout)
}
