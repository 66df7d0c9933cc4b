package models

import (
	"strings"
	"time"
)

// DisplayDateFormat is how publish dates are shown and exported ("Tue Jan 14 2020")
const DisplayDateFormat = "Mon Jan 02 2006"

// Record is one paper's metadata as parsed from a search API entry
type Record struct {
	Title     string
	Published time.Time
	Authors   []string
	Summary   string
	Link      string
}

// AuthorList joins author names with the export delimiter
func (r Record) AuthorList() string {
	return strings.Join(r.Authors, ", ")
}

// PublishedDay returns the UTC calendar day the record was published
func (r Record) PublishedDay() time.Time {
	return Day(r.Published)
}

// PublishedString formats the publish date for display and export
func (r Record) PublishedString() string {
	if r.Published.IsZero() {
		return ""
	}
	return r.Published.UTC().Format(DisplayDateFormat)
}

// CleanText prepares raw feed text for downstream use.
// Double quotes become single quotes and runs of whitespace (arXiv wraps titles
// and abstracts across lines) collapse to one space.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, `"`, `'`)
	return strings.Join(strings.Fields(s), " ")
}

// ResultSet is the ordered output of a scrape.
// Records are newest-first unless the query carried a date window, in which case
// they are oldest-first.
type ResultSet struct {
	Query   Query
	Records []Record
}

// Len returns the number of records
func (rs ResultSet) Len() int {
	return len(rs.Records)
}

// Preview returns at most n leading records
func (rs ResultSet) Preview(n int) []Record {
	if n < 0 || n >= len(rs.Records) {
		return rs.Records
	}
	return rs.Records[:n]
}

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
