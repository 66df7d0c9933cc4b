package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thesavant42/arxived/internal/api"
	"github.com/thesavant42/arxived/internal/models"
	"github.com/thesavant42/arxived/internal/retry"
)

// fakeAPI serves a newest-first dataset by offset
type fakeAPI struct {
	records []models.Record
	empties map[int]int // offset -> number of empty responses before real data
	err     error       // returned on every call when set
	calls   []int       // offsets requested, in order
	sizes   []int       // page sizes requested, in order
}

func (f *fakeAPI) FetchPage(ctx context.Context, topic string, offset, pageSize int) ([]models.Record, error) {
	f.calls = append(f.calls, offset)
	f.sizes = append(f.sizes, pageSize)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.empties[offset] > 0 {
		f.empties[offset]--
		return nil, nil
	}
	if offset >= len(f.records) {
		return nil, nil
	}
	end := min(offset+pageSize, len(f.records))
	out := make([]models.Record, end-offset)
	copy(out, f.records[offset:end])
	return out, nil
}

func (f *fakeAPI) callsAt(offset int) int {
	n := 0
	for _, c := range f.calls {
		if c == offset {
			n++
		}
	}
	return n
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dailyRecords returns one record per day from newest back to oldest, inclusive
func dailyRecords(newest, oldest time.Time) []models.Record {
	var out []models.Record
	for d := newest; !d.Before(oldest); d = d.AddDate(0, 0, -1) {
		out = append(out, models.Record{
			Title:     fmt.Sprintf("Paper %s", d.Format("2006-01-02")),
			Published: d.Add(14 * time.Hour),
			Authors:   []string{"A. Author"},
			Link:      "http://arxiv.org/pdf/" + d.Format("20060102"),
		})
	}
	return out
}

func newTestScraper(f *fakeAPI, clock *retry.FakeClock) *RangeScraper {
	return New(f, WithClock(clock))
}

func TestScrapeNoWindowReturnsFirstPage(t *testing.T) {
	data := dailyRecords(day(2021, 3, 5), day(2021, 3, 1))
	f := &fakeAPI{records: data}
	clock := &retry.FakeClock{}

	rs, err := newTestScraper(f, clock).Scrape(context.Background(), models.Query{Topic: "quantum computing", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, data, rs.Records)
	assert.Equal(t, []int{0}, f.calls)
	assert.Equal(t, []int{5}, f.sizes)
	assert.Empty(t, clock.Sleeps())
}

func TestScrapeNoWindowLength(t *testing.T) {
	data := dailyRecords(day(2021, 3, 20), day(2021, 3, 1))

	for _, limit := range []int{1, 10, 20, 50} {
		t.Run(fmt.Sprint(limit), func(t *testing.T) {
			f := &fakeAPI{records: data}
			rs, err := newTestScraper(f, &retry.FakeClock{}).Scrape(context.Background(), models.Query{Topic: "ML", Limit: limit})
			require.NoError(t, err)
			require.Len(t, rs.Records, min(limit, len(data)))
			for i := 1; i < len(rs.Records); i++ {
				assert.False(t, rs.Records[i].Published.After(rs.Records[i-1].Published), "not newest-first at %d", i)
			}
		})
	}
}

func TestScrapeWindowPagesBackward(t *testing.T) {
	data := dailyRecords(day(2021, 12, 31), day(2019, 1, 1))
	f := &fakeAPI{records: data}
	clock := &retry.FakeClock{}
	q := models.Query{Topic: "ML", Limit: 10, Start: day(2020, 1, 1), End: day(2020, 1, 31)}

	rs, err := newTestScraper(f, clock).Scrape(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, rs.Records, 10)
	for i, r := range rs.Records {
		assert.True(t, q.InWindow(r.Published), "record %d outside window: %s", i, r.Published)
		assert.Equal(t, day(2020, 1, 1+i), r.PublishedDay())
	}

	assert.Equal(t, []int{0, 10, 510}, f.calls)
	assert.Equal(t, []int{10, DefaultStepSize, DefaultStepSize}, f.sizes)
	assert.Equal(t, []time.Duration{DefaultPageDelay, DefaultPageDelay}, clock.Sleeps())
}

func TestScrapeWindowStopsAtEnd(t *testing.T) {
	data := dailyRecords(day(2021, 12, 31), day(2019, 1, 1))
	f := &fakeAPI{records: data}
	q := models.Query{Topic: "ML", Limit: 100, Start: day(2020, 1, 1), End: day(2020, 1, 31)}

	rs, err := newTestScraper(f, &retry.FakeClock{}).Scrape(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, rs.Records, 31)
	assert.Equal(t, day(2020, 1, 1), rs.Records[0].PublishedDay())
	assert.Equal(t, day(2020, 1, 31), rs.Records[30].PublishedDay())
}

func TestScrapeWindowBoundaryOnStartDate(t *testing.T) {
	// the first page ends at midnight of the start date, so nothing older can match
	data := dailyRecords(day(2020, 1, 5), day(2019, 12, 1))
	for i := range data {
		data[i].Published = data[i].PublishedDay()
	}
	f := &fakeAPI{records: data}
	clock := &retry.FakeClock{}
	q := models.Query{Topic: "ML", Limit: 5, Start: day(2020, 1, 1), End: day(2020, 1, 5)}

	rs, err := newTestScraper(f, clock).Scrape(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, f.calls)
	assert.Empty(t, clock.Sleeps())
	require.Len(t, rs.Records, 5)
	assert.Equal(t, day(2020, 1, 1), rs.Records[0].PublishedDay())
	assert.Equal(t, day(2020, 1, 5), rs.Records[4].PublishedDay())
}

func TestScrapeWindowPagesPastStartDay(t *testing.T) {
	at := func(d, h int) time.Time {
		if d == 31 {
			return time.Date(2019, 12, 31, h, 0, 0, 0, time.UTC)
		}
		return time.Date(2020, 1, d, h, 0, 0, 0, time.UTC)
	}
	data := []models.Record{
		{Title: "jan2-12h", Published: at(2, 12)},
		{Title: "jan1-15h", Published: at(1, 15)},
		{Title: "jan1-10h", Published: at(1, 10)},
		{Title: "dec31-9h", Published: at(31, 9)},
	}
	f := &fakeAPI{records: data}
	clock := &retry.FakeClock{}
	q := models.Query{Topic: "ML", Limit: 2, Start: day(2020, 1, 1), End: day(2020, 1, 2)}

	rs, err := newTestScraper(f, clock).Scrape(context.Background(), q)
	require.NoError(t, err)

	// the first page stops at jan1-15h, which is later than the start of jan 1
	assert.Equal(t, []int{0, 2}, f.calls)
	assert.Equal(t, []time.Duration{DefaultPageDelay}, clock.Sleeps())

	var titles []string
	for _, r := range rs.Records {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"jan1-10h", "jan1-15h"}, titles)
}

func TestScrapeRetryBound(t *testing.T) {
	data := dailyRecords(day(2021, 12, 31), day(2019, 1, 1))
	q := models.Query{Topic: "ML", Limit: 10, Start: day(2020, 1, 1), End: day(2020, 1, 31)}

	for n := 0; n <= DefaultMaxRetries+1; n++ {
		t.Run(fmt.Sprintf("empty_%d", n), func(t *testing.T) {
			f := &fakeAPI{records: data, empties: map[int]int{10: n}}
			rs, err := newTestScraper(f, &retry.FakeClock{}).Scrape(context.Background(), q)
			require.NoError(t, err)

			if n <= DefaultMaxRetries {
				assert.Len(t, rs.Records, 10)
				assert.Equal(t, n+1, f.callsAt(10))
				return
			}
			// budget exhausted: pagination ends with what the first page held
			assert.Empty(t, rs.Records)
			assert.Equal(t, DefaultMaxRetries+1, f.callsAt(10))
			assert.Zero(t, f.callsAt(510))
		})
	}
}

func TestScrapeRetriesFirstPage(t *testing.T) {
	data := dailyRecords(day(2021, 3, 5), day(2021, 3, 1))
	f := &fakeAPI{records: data, empties: map[int]int{0: 3}}
	clock := &retry.FakeClock{}

	rs, err := newTestScraper(f, clock).Scrape(context.Background(), models.Query{Topic: "ML", Limit: 5})
	require.NoError(t, err)

	assert.Len(t, rs.Records, 5)
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay, DefaultRetryDelay}, clock.Sleeps())
}

func TestScrapeAllPagesEmpty(t *testing.T) {
	f := &fakeAPI{}
	clock := &retry.FakeClock{}
	q := models.Query{Topic: "nothing here", Limit: 10, Start: day(2020, 1, 1), End: day(2020, 1, 31)}

	rs, err := newTestScraper(f, clock).Scrape(context.Background(), q)
	require.NoError(t, err)

	assert.Empty(t, rs.Records)
	assert.Len(t, f.calls, DefaultMaxRetries+1)
	assert.Equal(t, time.Duration(DefaultMaxRetries)*DefaultRetryDelay, clock.Total())
}

func TestScrapeTransportFailure(t *testing.T) {
	f := &fakeAPI{err: errors.New("connection refused")}

	rs, err := newTestScraper(f, &retry.FakeClock{}).Scrape(context.Background(), models.Query{Topic: "ML", Limit: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Empty(t, rs.Records)
	assert.Len(t, f.calls, DefaultMaxRetries+1)
}

func TestScrapeMalformedIsEmpty(t *testing.T) {
	f := &fakeAPI{err: fmt.Errorf("%w: unexpected EOF", api.ErrMalformedFeed)}

	rs, err := newTestScraper(f, &retry.FakeClock{}).Scrape(context.Background(), models.Query{Topic: "ML", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, rs.Records)
}

func TestScrapeIdempotent(t *testing.T) {
	data := dailyRecords(day(2021, 12, 31), day(2019, 1, 1))
	q := models.Query{Topic: "ML", Limit: 10, Start: day(2020, 6, 1), End: day(2020, 6, 30)}

	first, err := newTestScraper(&fakeAPI{records: data}, &retry.FakeClock{}).Scrape(context.Background(), q)
	require.NoError(t, err)
	second, err := newTestScraper(&fakeAPI{records: data}, &retry.FakeClock{}).Scrape(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScrapeCancelled(t *testing.T) {
	data := dailyRecords(day(2021, 12, 31), day(2019, 1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	var pages int
	s := New(&fakeAPI{records: data}, WithClock(&retry.FakeClock{}), WithProgress(func(p Progress) {
		pages = p.Page
		if p.Page == 2 {
			cancel()
		}
	}))

	q := models.Query{Topic: "ML", Limit: 10, Start: day(2020, 1, 1), End: day(2020, 1, 31)}
	rs, err := s.Scrape(ctx, q)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rs.Records)
	assert.Equal(t, 2, pages)
}

func TestScrapeCustomOptions(t *testing.T) {
	data := dailyRecords(day(2021, 12, 31), day(2019, 1, 1))
	f := &fakeAPI{records: data, empties: map[int]int{3: 1}}
	clock := &retry.FakeClock{}
	s := New(f, WithClock(clock), WithOptions(Options{
		StepSize:   100,
		MaxRetries: 1,
		RetryDelay: time.Second,
		PageDelay:  time.Millisecond,
	}))

	q := models.Query{Topic: "ML", Limit: 3, Start: day(2021, 9, 1), End: day(2021, 9, 30)}
	rs, err := s.Scrape(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, rs.Records, 3)
	assert.Equal(t, day(2021, 9, 1), rs.Records[0].PublishedDay())
	assert.Equal(t, []int{0, 3, 3, 103}, f.calls)
	assert.Equal(t, []time.Duration{time.Millisecond, time.Second, time.Millisecond}, clock.Sleeps())
}

func TestFilterWindow(t *testing.T) {
	data := dailyRecords(day(2020, 2, 10), day(2019, 12, 20))
	q := models.Query{Limit: 5, Start: day(2020, 1, 1), End: day(2020, 1, 3)}

	got := filterWindow(data, q)
	require.Len(t, got, 3)
	assert.Equal(t, day(2020, 1, 1), got[0].PublishedDay())
	assert.Equal(t, day(2020, 1, 3), got[2].PublishedDay())
}

func TestContextProgressOverridesOption(t *testing.T) {
	data := dailyRecords(day(2020, 1, 10), day(2020, 1, 1))
	var fromOption, fromContext []Progress
	s := New(&fakeAPI{records: data}, WithClock(&retry.FakeClock{}), WithProgress(func(p Progress) {
		fromOption = append(fromOption, p)
	}))

	ctx := ContextWithProgress(context.Background(), func(p Progress) {
		fromContext = append(fromContext, p)
	})
	_, err := s.Scrape(ctx, models.Query{Topic: "ML", Limit: 5})
	require.NoError(t, err)

	assert.Empty(t, fromOption)
	require.Len(t, fromContext, 2)
	assert.Equal(t, 1, fromContext[0].Page)
	assert.Equal(t, 5, fromContext[1].Fetched)
	assert.Equal(t, day(2020, 1, 6), models.Day(fromContext[1].Oldest))
}
