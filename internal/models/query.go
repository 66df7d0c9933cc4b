package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	// MaxResultLimit caps how many records a single query may ask for
	MaxResultLimit = 1000

	// DefaultTopic and DefaultLimit make up the query submitted on startup
	DefaultTopic = "Machine Learning"
	DefaultLimit = 10
)

// Query is an immutable search request
type Query struct {
	Topic string
	Limit int
	Start time.Time // zero when no window
	End   time.Time // zero when no window
}

// HasWindow reports whether the query restricts results to a date range
func (q Query) HasWindow() bool {
	return !q.Start.IsZero() && !q.End.IsZero()
}

// InWindow reports whether t falls on a day inside [Start, End]
func (q Query) InWindow(t time.Time) bool {
	d := Day(t)
	return !d.Before(q.Start) && !d.After(q.End)
}

// String renders the query for status lines and logs
func (q Query) String() string {
	if !q.HasWindow() {
		return fmt.Sprintf("%q (limit %d)", q.Topic, q.Limit)
	}
	return fmt.Sprintf("%q (limit %d, %s to %s)", q.Topic, q.Limit,
		q.Start.Format("2006-01-02"), q.End.Format("2006-01-02"))
}

// ValidationError reports a rejected form field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ParseQuery validates raw form input and builds a Query.
// Limits above maxLimit are clamped; maxLimit <= 0 means MaxResultLimit.
func ParseQuery(topic, limit, start, end string, maxLimit int) (Query, error) {
	if maxLimit <= 0 {
		maxLimit = MaxResultLimit
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Query{}, invalid("topic", "Please enter a topic")
	}

	n, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil || n <= 0 {
		return Query{}, invalid("limit", "Please enter a valid limit for the number of results (MAX %d)", maxLimit)
	}
	if n > maxLimit {
		n = maxLimit
	}

	q := Query{Topic: topic, Limit: n}

	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start == "" && end == "" {
		return q, nil
	}
	if end == "" {
		return Query{}, invalid("end", "Please enter an end date range")
	}
	if start == "" {
		return Query{}, invalid("start", "Please enter a start date range")
	}

	startDate, err := ParseDate(start)
	if err != nil {
		return Query{}, invalid("start", "Please enter a valid start date (Ex: 1/01/2019)")
	}
	endDate, err := ParseDate(end)
	if err != nil {
		return Query{}, invalid("end", "Please enter a valid end date (Ex: 5/01/2020)")
	}
	if startDate.After(endDate) {
		return Query{}, invalid("start", "Make sure the start date range is earlier than the end date range")
	}

	q.Start = startDate
	q.End = endDate
	return q, nil
}

// ParseDate accepts free-form dates ("1/01/2020", "2020-01-31", "Jan 5 2020")
// and returns the UTC calendar day
func ParseDate(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return Day(t), nil
}
