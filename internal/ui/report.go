package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/thesavant42/arxived/internal/models"
	"github.com/thesavant42/arxived/internal/scraper"
)

var (
	// Color palette
	purple = lipgloss.Color("99")  // for borders
	pink   = lipgloss.Color("205") // for header text
	cyan   = lipgloss.Color("86")
	white  = lipgloss.Color("255")
	green  = lipgloss.Color("82")
	yellow = lipgloss.Color("220")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(pink).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(cyan)

	headerStyle = lipgloss.NewStyle().
			Foreground(pink).
			Bold(true)

	rowStyle = lipgloss.NewStyle().
			Foreground(white)

	statStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true)

	borderStyle = lipgloss.NewStyle().
			Foreground(purple)
)

// Report prints headless search output to w
type Report struct {
	w io.Writer
}

// NewReport creates a report writer
func NewReport(w io.Writer) *Report {
	return &Report{w: w}
}

// PrintHeader prints the result title and counts
func (r *Report) PrintHeader(rs models.ResultSet) {
	header := titleStyle.Render(fmt.Sprintf("Top matches for %q", rs.Query.Topic))
	stats := subtitleStyle.Render(fmt.Sprintf("Entries: %s", statStyle.Render(humanize.Comma(int64(rs.Len())))))
	if rs.Query.HasWindow() {
		stats += subtitleStyle.Render(fmt.Sprintf("  Published %s to %s",
			rs.Query.Start.Format(models.DisplayDateFormat), rs.Query.End.Format(models.DisplayDateFormat)))
	}

	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, header)
	fmt.Fprintln(r.w, stats)
	fmt.Fprintln(r.w)
}

// PrintResultsTable prints a styled table of records.
//
// This is a non-interactive report, so the table structure is plain string
// formatting and lipgloss only colors it. Interactive tables use bubbles/table.
func (r *Report) PrintResultsTable(records []models.Record) {
	if len(records) == 0 {
		fmt.Fprintln(r.w, subtitleStyle.Render("No entries matched"))
		return
	}

	colWidths := []int{4, 56, 30, 15} // #, Title, Authors, Published
	totalWidth := 2
	for _, w := range colWidths {
		totalWidth += w + 3 // column width + " │ " separator
	}
	totalWidth -= 1

	separator := strings.Repeat("─", totalWidth-2)

	fmt.Fprintln(r.w, borderStyle.Render("┌"+separator+"┐"))
	fmt.Fprintln(r.w, headerStyle.Render(formatRow(colWidths, "#", "Title", "Authors", "Published")))
	fmt.Fprintln(r.w, borderStyle.Render("├"+separator+"┤"))

	for i, rec := range records {
		fmt.Fprintln(r.w, rowStyle.Render(formatRow(colWidths,
			fmt.Sprintf("%d", i+1),
			truncateToWidth(rec.Title, colWidths[1]),
			truncateToWidth(rec.AuthorList(), colWidths[2]),
			rec.PublishedString(),
		)))
	}

	fmt.Fprintln(r.w, borderStyle.Render("└"+separator+"┘"))
	fmt.Fprintln(r.w)
}

func formatRow(widths []int, cells ...string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		pad := widths[i] - StringWidth(c)
		if pad < 0 {
			pad = 0
		}
		parts[i] = c + strings.Repeat(" ", pad)
	}
	return "│ " + strings.Join(parts, " │ ") + " │"
}

// PrintProgress rewrites the current line with scrape progress
func (r *Report) PrintProgress(p scraper.Progress) {
	progressStyle := lipgloss.NewStyle().Foreground(yellow)
	fmt.Fprintf(r.w, "\r%s", progressStyle.Render(ProgressLine(p)))
}

// PrintSuccess prints a success message
func (r *Report) PrintSuccess(message string) {
	fmt.Fprintln(r.w, SuccessStyle.Render(message))
}

// PrintError prints an error message
func (r *Report) PrintError(message string) {
	fmt.Fprintln(r.w, ErrorStyle.Render("Error: "+message))
}

// ProgressLine describes scrape progress in one line
func ProgressLine(p scraper.Progress) string {
	line := fmt.Sprintf("Page %d  |  Offset %s  |  Entries %s",
		p.Page, humanize.Comma(int64(p.Offset)), humanize.Comma(int64(p.Fetched)))
	if !p.Oldest.IsZero() {
		line += "  |  Scraping from " + p.Oldest.UTC().Format(models.DisplayDateFormat)
	}
	if p.Retry > 0 {
		line += fmt.Sprintf("  |  Empty page, retry %d", p.Retry)
	}
	return line
}
