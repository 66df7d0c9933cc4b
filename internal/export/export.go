// Package export writes result sets to CSV and Markdown files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/thesavant42/arxived/internal/models"
)

// DefaultCSVFilename is the name the CSV export is saved under
const DefaultCSVFilename = "arxiv_data.csv"

// CSVHeader is the fixed column order of the CSV export
var CSVHeader = []string{"title", "published", "authors", "summary", "link"}

// WriteCSV writes the header and one row per record
func WriteCSV(w io.Writer, rs models.ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rs.Records {
		row := []string{r.Title, r.PublishedString(), r.AuthorList(), r.Summary, r.Link}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// SaveCSV writes rs to dir/filename and returns the path written.
// An empty filename uses DefaultCSVFilename.
func SaveCSV(rs models.ResultSet, dir, filename string) (string, error) {
	if filename == "" {
		filename = DefaultCSVFilename
	}
	path, err := outputPath(dir, filename)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create csv file: %w", err)
	}
	err = writeAndClose(f, func(w io.Writer) error {
		return WriteCSV(w, rs)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// writeAndClose runs write against wc and closes it. A failed close counts as a
// failed write.
func writeAndClose(wc io.WriteCloser, write func(io.Writer) error) error {
	if err := write(wc); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// MarkdownFilename builds a dated filename from the query topic
func MarkdownFilename(q models.Query, now time.Time) string {
	slug := strings.ToLower(strings.Join(strings.Fields(q.Topic), "-"))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return -1
		}
	}, slug)
	if slug == "" {
		slug = "arxiv"
	}
	return fmt.Sprintf("%s-%s.md", slug, now.Format("2006-01-02"))
}

// RenderMarkdown builds the markdown report for rs
func RenderMarkdown(rs models.ResultSet, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Top matches for %q\n\n", rs.Query.Topic))

	sb.WriteString(fmt.Sprintf("**Entries:** %s\n", humanize.Comma(int64(rs.Len()))))
	sb.WriteString(fmt.Sprintf("**Limit:** %d\n", rs.Query.Limit))
	if rs.Query.HasWindow() {
		sb.WriteString(fmt.Sprintf("**Published:** %s to %s\n",
			rs.Query.Start.Format(models.DisplayDateFormat), rs.Query.End.Format(models.DisplayDateFormat)))
	}
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", now.Format("2006-01-02 15:04:05")))

	sb.WriteString("| # | Title | Authors | Published |\n")
	sb.WriteString("|---|-------|---------|-----------|\n")

	for i, r := range rs.Records {
		title := escapeCell(r.Title)
		if r.Link != "" {
			title = fmt.Sprintf("[%s](%s)", title, r.Link)
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
			i+1, title, escapeCell(r.AuthorList()), r.PublishedString()))
	}

	return sb.String()
}

// SaveMarkdown writes the markdown report into dir and returns the path written
func SaveMarkdown(rs models.ResultSet, dir string) (string, error) {
	now := time.Now()
	path, err := outputPath(dir, MarkdownFilename(rs.Query, now))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(RenderMarkdown(rs, now)), 0644); err != nil {
		return "", fmt.Errorf("failed to write markdown file: %w", err)
	}
	return path, nil
}

func outputPath(dir, filename string) (string, error) {
	if dir == "" {
		return filename, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	return filepath.Join(dir, filename), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
