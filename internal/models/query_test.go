package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		limit     string
		start     string
		end       string
		wantField string
		want      Query
	}{
		{name: "plain", topic: " quantum computing ", limit: "5", want: Query{Topic: "quantum computing", Limit: 5}},
		{name: "clamped", topic: "ML", limit: "5000", want: Query{Topic: "ML", Limit: MaxResultLimit}},
		{name: "empty topic", topic: "  ", limit: "5", wantField: "topic"},
		{name: "non numeric limit", topic: "ML", limit: "ten", wantField: "limit"},
		{name: "zero limit", topic: "ML", limit: "0", wantField: "limit"},
		{name: "missing end", topic: "ML", limit: "10", start: "1/01/2020", wantField: "end"},
		{name: "missing start", topic: "ML", limit: "10", end: "1/31/2020", wantField: "start"},
		{name: "bad start", topic: "ML", limit: "10", start: "not a date", end: "1/31/2020", wantField: "start"},
		{name: "bad end", topic: "ML", limit: "10", start: "1/01/2020", end: "soon", wantField: "end"},
		{name: "reversed", topic: "ML", limit: "10", start: "2/01/2020", end: "1/01/2020", wantField: "start"},
		{
			name: "window", topic: "ML", limit: "10", start: "1/01/2020", end: "2020-01-31",
			want: Query{Topic: "ML", Limit: 10, Start: date(2020, 1, 1), End: date(2020, 1, 31)},
		},
		{
			name: "single day window", topic: "ML", limit: "10", start: "2020-01-05", end: "2020-01-05",
			want: Query{Topic: "ML", Limit: 10, Start: date(2020, 1, 5), End: date(2020, 1, 5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuery(tt.topic, tt.limit, tt.start, tt.end, 0)
			if tt.wantField != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
				assert.Equal(t, tt.wantField, verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestQueryInWindow(t *testing.T) {
	q := Query{Topic: "ML", Limit: 10, Start: date(2020, 1, 1), End: date(2020, 1, 31)}
	require.True(t, q.HasWindow())

	assert.True(t, q.InWindow(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, q.InWindow(time.Date(2020, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, q.InWindow(time.Date(2019, 12, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, q.InWindow(time.Date(2020, 2, 1, 0, 0, 1, 0, time.UTC)))

	assert.False(t, Query{Topic: "ML", Limit: 1}.HasWindow())
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "A 'quoted' title", CleanText("  A \"quoted\"\n   title "))
	assert.Equal(t, "", CleanText("\n\t"))
}

func TestResultSetPreview(t *testing.T) {
	rs := ResultSet{Records: make([]Record, 25)}
	assert.Len(t, rs.Preview(20), 20)
	assert.Len(t, rs.Preview(100), 25)
	assert.Len(t, rs.Preview(-1), 25)
}

func TestRecordFormatting(t *testing.T) {
	r := Record{
		Authors:   []string{"Ada Lovelace", "Alan Turing"},
		Published: time.Date(2020, 1, 14, 18, 30, 0, 0, time.UTC),
	}
	assert.Equal(t, "Ada Lovelace, Alan Turing", r.AuthorList())
	assert.Equal(t, "Tue Jan 14 2020", r.PublishedString())
	assert.Equal(t, date(2020, 1, 14), r.PublishedDay())
	assert.Equal(t, "", Record{}.PublishedString())
}
