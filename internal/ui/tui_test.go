package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesavant42/arxived/internal/controller"
	"github.com/thesavant42/arxived/internal/db"
	"github.com/thesavant42/arxived/internal/models"
	"github.com/thesavant42/arxived/internal/scraper"
)

// stubScraper returns n generated records for any query
type stubScraper struct {
	n       int
	err     error
	queries []models.Query
}

func (s *stubScraper) Scrape(ctx context.Context, q models.Query) (models.ResultSet, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return models.ResultSet{Query: q}, s.err
	}
	rs := models.ResultSet{Query: q}
	for i := 0; i < s.n; i++ {
		rs.Records = append(rs.Records, models.Record{
			Title:     fmt.Sprintf("paper %d", i),
			Published: time.Date(2020, 1, 1+i%28, 0, 0, 0, 0, time.UTC),
			Authors:   []string{"Ada Lovelace"},
			Summary:   "An abstract.",
			Link:      fmt.Sprintf("http://arxiv.org/pdf/%d", i),
		})
	}
	return rs, nil
}

func newTestApp(t *testing.T, s *stubScraper, opts Options) AppModel {
	t.Helper()
	store, err := db.New()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	opts.Controller = controller.New(s, nil)
	opts.Store = store
	if opts.DefaultQuery.Topic == "" {
		opts.DefaultQuery = QueryInput{Topic: models.DefaultTopic, Limit: "10"}
	}
	return NewAppModel(context.Background(), opts)
}

// collect runs cmd and flattens batches into their messages
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// deliver feeds back the app's own messages produced by cmd, recursively
func deliver(t *testing.T, m AppModel, cmd tea.Cmd) AppModel {
	t.Helper()
	for _, msg := range collect(cmd) {
		switch msg.(type) {
		case scrapeDoneMsg, recordsLoadedMsg, exportDoneMsg, submitDefaultMsg:
			next, nextCmd := m.Update(msg)
			m = deliver(t, next.(AppModel), nextCmd)
		}
	}
	return m
}

func press(m AppModel, key string) (AppModel, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(AppModel), cmd
}

func TestAutoSearchShowsResults(t *testing.T) {
	s := &stubScraper{n: 3}
	m := newTestApp(t, s, Options{AutoSearch: true})

	m = deliver(t, m, m.Init())

	require.Len(t, s.queries, 1)
	assert.Equal(t, models.DefaultTopic, s.queries[0].Topic)
	assert.Equal(t, 10, s.queries[0].Limit)

	assert.Equal(t, viewResults, m.mode)
	assert.Len(t, m.rows, 3)
	assert.Equal(t, 3, m.total)

	view := m.View()
	assert.Contains(t, view, `Top matches for "Machine Learning"`)
	assert.Contains(t, view, "paper 0")
}

func TestNoAutoSearchStartsOnForm(t *testing.T) {
	s := &stubScraper{n: 3}
	m := newTestApp(t, s, Options{})

	m = deliver(t, m, m.Init())
	assert.Empty(t, s.queries)
	assert.Equal(t, viewForm, m.mode)
	view := m.View()
	assert.Contains(t, view, "Enter: scrape arXiv")
	assert.Contains(t, view, models.DefaultTopic)
}

func TestPreviewIsCapped(t *testing.T) {
	s := &stubScraper{n: 30}
	m := newTestApp(t, s, Options{PreviewCap: 20, DefaultQuery: QueryInput{Topic: "graphs", Limit: "30"}})

	m = deliver(t, m, func() tea.Msg { return submitDefaultMsg{} })

	assert.Len(t, m.rows, 20)
	assert.Equal(t, 30, m.total)
	assert.Equal(t, 30, m.results.Len())
	assert.Equal(t, 30, m.stored)
	assert.False(t, m.storedAt.IsZero())
	assert.Equal(t, "graphs", m.query.Topic)

	view := m.View()
	assert.Contains(t, view, "Showing 20 of 30 entries")
	assert.Contains(t, view, "Download as CSV for all 30 results")
}

func TestInvalidFormDoesNotScrape(t *testing.T) {
	s := &stubScraper{n: 3}
	m := newTestApp(t, s, Options{})
	m.form.SetValues("", "10", "", "")

	m, cmd := press(m, "enter")
	m = deliver(t, m, cmd)

	assert.Empty(t, s.queries)
	assert.Equal(t, viewForm, m.mode)
	assert.Contains(t, m.View(), "Please enter a topic")
}

func TestStaleOutcomeIgnored(t *testing.T) {
	s := &stubScraper{n: 3}
	m := newTestApp(t, s, Options{})
	m.mode = viewScraping
	m.gen = 2

	next, cmd := m.Update(scrapeDoneMsg{outcome: controller.Outcome{Generation: 1, Results: models.ResultSet{Records: make([]models.Record, 5)}}})
	m = next.(AppModel)

	assert.Nil(t, cmd)
	assert.Equal(t, viewScraping, m.mode)
	assert.Zero(t, m.results.Len())
}

func TestProgressForOtherGenerationIgnored(t *testing.T) {
	m := newTestApp(t, &stubScraper{}, Options{})
	m.gen = 2

	next, _ := m.Update(scrapeProgressMsg{gen: 1, progress: scraper.Progress{Page: 9}})
	m = next.(AppModel)
	assert.False(t, m.hasProgress)

	next, _ = m.Update(scrapeProgressMsg{gen: 2, progress: scraper.Progress{Page: 3, Fetched: 1500}})
	m = next.(AppModel)
	assert.True(t, m.hasProgress)
	assert.Equal(t, 3, m.progress.Page)
}

func TestScrapeErrorShown(t *testing.T) {
	s := &stubScraper{err: fmt.Errorf("%w: connection refused", scraper.ErrFetchFailed)}
	m := newTestApp(t, s, Options{})

	m = deliver(t, m, func() tea.Msg { return submitDefaultMsg{} })

	assert.Equal(t, viewResults, m.mode)
	assert.ErrorIs(t, m.err, scraper.ErrFetchFailed)
	assert.Contains(t, m.View(), "connection refused")
}

func TestFilterNarrowsTable(t *testing.T) {
	s := &stubScraper{n: 12}
	m := newTestApp(t, s, Options{})
	m = deliver(t, m, func() tea.Msg { return submitDefaultMsg{} })
	require.Len(t, m.rows, 12)

	m, _ = press(m, "/")
	assert.Equal(t, viewFilter, m.mode)
	m, _ = press(m, "paper 1")
	m, cmd := press(m, "enter")
	m = deliver(t, m, cmd)

	assert.Equal(t, viewResults, m.mode)
	assert.Equal(t, "paper 1", m.filterText)
	assert.Equal(t, 3, m.total) // paper 1, 10, 11
	assert.Equal(t, 12, m.stored)

	m, cmd = press(m, "c")
	m = deliver(t, m, cmd)
	assert.Equal(t, 12, m.total)
}

func TestDetailAndOpen(t *testing.T) {
	s := &stubScraper{n: 2}
	m := newTestApp(t, s, Options{})
	m = deliver(t, m, func() tea.Msg { return submitDefaultMsg{} })

	var opened []string
	m.openURL = func(u string) error {
		opened = append(opened, u)
		return nil
	}

	m, _ = press(m, "enter")
	require.Equal(t, viewDetail, m.mode)
	require.NotNil(t, m.detail)
	assert.Contains(t, m.View(), "An abstract.")

	m, _ = press(m, "o")
	assert.Equal(t, []string{"http://arxiv.org/pdf/0"}, opened)

	m, _ = press(m, "esc")
	assert.Equal(t, viewResults, m.mode)
}

func TestExportKeys(t *testing.T) {
	dir := t.TempDir()
	s := &stubScraper{n: 4}
	m := newTestApp(t, s, Options{ExportDir: dir, CSVFilename: "arxiv_data.csv"})
	m = deliver(t, m, func() tea.Msg { return submitDefaultMsg{} })

	m, cmd := press(m, "e")
	m = deliver(t, m, cmd)
	data, err := os.ReadFile(filepath.Join(dir, "arxiv_data.csv"))
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(data), "\n"))
	assert.Contains(t, m.StatusMsg, "Exported 4 entries")

	m, cmd = press(m, "m")
	deliver(t, m, cmd)
	matches, err := filepath.Glob(filepath.Join(dir, "machine-learning-*.md"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestNewQueryFromResults(t *testing.T) {
	s := &stubScraper{n: 2}
	m := newTestApp(t, s, Options{})
	m = deliver(t, m, func() tea.Msg { return submitDefaultMsg{} })

	m, _ = press(m, "n")
	assert.Equal(t, viewForm, m.mode)

	// esc returns to the previous results
	m, _ = press(m, "esc")
	assert.Equal(t, viewResults, m.mode)

	m, _ = press(m, "n")
	m, _ = press(m, "transformers")
	m, _ = press(m, "tab")
	m, _ = press(m, "5")
	m, cmd := press(m, "enter")
	m = deliver(t, m, cmd)

	require.Len(t, s.queries, 2)
	assert.Equal(t, models.Query{Topic: "transformers", Limit: 5}, s.queries[1])
	assert.Contains(t, m.View(), `Top matches for "transformers"`)
}

func TestCancelScrape(t *testing.T) {
	m := newTestApp(t, &stubScraper{n: 1}, Options{})
	m.mode = viewScraping

	m, _ = press(m, "esc")
	assert.Equal(t, viewForm, m.mode)
	assert.Equal(t, "Scrape cancelled", m.StatusMsg)
}
