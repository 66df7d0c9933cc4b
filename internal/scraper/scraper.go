// Package scraper walks arXiv search results backwards in time to collect the
// papers that fall inside a date window.
//
// The search API only sorts and pages by offset, so a windowed query pages
// through newest-first results until the oldest entry seen reaches the start of
// the window, then filters the accumulated entries.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/arxived/internal/api"
	"github.com/thesavant42/arxived/internal/models"
	"github.com/thesavant42/arxived/internal/retry"
)

const (
	DefaultStepSize   = 500
	DefaultMaxRetries = 5
	DefaultRetryDelay = 5 * time.Second
	DefaultPageDelay  = 2 * time.Second
)

// ErrFetchFailed is returned when the API could not be reached at all
var ErrFetchFailed = errors.New("fetch failed")

// Options tune pagination. Zero values fall back to the defaults above.
type Options struct {
	StepSize   int           // page size for every page after the first
	MaxRetries int           // extra attempts for an empty page; negative disables retries
	RetryDelay time.Duration // pause between attempts at the same offset
	PageDelay  time.Duration // pause between successful page fetches
}

func (o Options) withDefaults() Options {
	if o.StepSize <= 0 {
		o.StepSize = DefaultStepSize
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.PageDelay <= 0 {
		o.PageDelay = DefaultPageDelay
	}
	return o
}

// Progress describes the state of a scrape after each fetch attempt
type Progress struct {
	Page    int       // 1-based page number
	Offset  int       // offset of the page being fetched
	Fetched int       // entries accumulated so far
	Oldest  time.Time // publish date of the oldest entry seen
	Retry   int       // retry number for the current page, 0 on the first attempt
}

// ProgressFunc receives progress updates. It runs on the scraping goroutine.
type ProgressFunc func(Progress)

type progressKey struct{}

// ContextWithProgress attaches a progress callback to a single scrape. It takes
// precedence over one registered with WithProgress.
func ContextWithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// RangeScraper produces result sets for queries against a SearchAPI
type RangeScraper struct {
	api      api.SearchAPI
	clock    retry.Clock
	opts     Options
	logger   *log.Logger
	progress ProgressFunc
}

// Option configures a RangeScraper
type Option func(*RangeScraper)

// WithClock replaces the clock used for pauses
func WithClock(clock retry.Clock) Option {
	return func(s *RangeScraper) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithOptions sets pagination options
func WithOptions(opts Options) Option {
	return func(s *RangeScraper) {
		s.opts = opts.withDefaults()
	}
}

// WithLogger sets the logger. A nil logger silences output.
func WithLogger(logger *log.Logger) Option {
	return func(s *RangeScraper) {
		s.logger = logger
	}
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(s *RangeScraper) {
		s.progress = fn
	}
}

// New creates a RangeScraper over the given search API
func New(searchAPI api.SearchAPI, opts ...Option) *RangeScraper {
	s := &RangeScraper{
		api:   searchAPI,
		clock: retry.RealClock{},
		opts:  Options{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pageResult is the outcome of fetching one offset with retries
type pageResult struct {
	records   []models.Record
	responded bool // at least one attempt got an answer from the API
	lastErr   error
}

// Scrape runs a query to completion.
// Without a window the first page is returned as-is (newest-first). With a window
// the result is oldest-first and bounded to q.Limit.
func (s *RangeScraper) Scrape(ctx context.Context, q models.Query) (models.ResultSet, error) {
	rs := models.ResultSet{Query: q}
	if q.Limit <= 0 {
		return rs, nil
	}

	page := 1
	offset := 0
	first, err := s.fetchPage(ctx, q.Topic, page, offset, q.Limit, 0)
	if err != nil {
		return rs, err
	}
	if len(first.records) == 0 {
		if !first.responded && first.lastErr != nil {
			return rs, fmt.Errorf("%w: %w", ErrFetchFailed, first.lastErr)
		}
		s.logInfo("No entries returned", "query", q.String())
		return rs, nil
	}

	if !q.HasWindow() {
		rs.Records = truncate(first.records, q.Limit)
		s.logInfo("Scraped entries", "count", len(rs.Records))
		return rs, nil
	}

	accumulated := append([]models.Record(nil), first.records...)
	current := first.records
	oldest := current[len(current)-1].Published

	// Compare against midnight of the start day: entries published earlier that
	// day may still sit on the next page
	for oldest.After(q.Start) {
		s.logInfo("Scraping from", "date", oldest.Format(models.DisplayDateFormat), "offset", offset+len(current))

		if err := s.clock.Sleep(ctx, s.opts.PageDelay); err != nil {
			return models.ResultSet{Query: q}, err
		}

		page++
		offset += len(current)
		next, err := s.fetchPage(ctx, q.Topic, page, offset, s.opts.StepSize, len(accumulated))
		if err != nil {
			return models.ResultSet{Query: q}, err
		}
		if len(next.records) == 0 {
			s.logWarn("Page stayed empty, treating as end of data", "offset", offset, "error", next.lastErr)
			break
		}

		current = next.records
		accumulated = append(accumulated, current...)
		oldest = current[len(current)-1].Published
	}

	rs.Records = filterWindow(accumulated, q)
	s.logInfo("Scraped entries", "count", len(rs.Records), "examined", len(accumulated))
	return rs, nil
}

// fetchPage fetches one offset, retrying while the page comes back empty
func (s *RangeScraper) fetchPage(ctx context.Context, topic string, page, offset, pageSize, fetched int) (pageResult, error) {
	var result pageResult

	policy := retry.Policy{MaxAttempts: s.opts.MaxRetries + 1, Delay: s.opts.RetryDelay}
	_, err := retry.Do(ctx, s.clock, policy,
		func(ctx context.Context, attempt int) (bool, error) {
			s.report(ctx, Progress{Page: page, Offset: offset, Fetched: fetched, Retry: attempt - 1})

			records, err := s.api.FetchPage(ctx, topic, offset, pageSize)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				if errors.Is(err, api.ErrMalformedFeed) {
					result.responded = true
				}
				result.lastErr = err
				return false, err
			}
			result.responded = true
			result.records = records
			if len(records) > 0 {
				oldest := records[len(records)-1].Published
				s.report(ctx, Progress{Page: page, Offset: offset, Fetched: fetched + len(records), Oldest: oldest, Retry: attempt - 1})
			}
			return len(records) > 0, nil
		},
		func(attempt int, err error) {
			s.logWarn("Request failed, retrying API request", "attempt", attempt, "offset", offset, "error", err)
		},
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if err != nil && !errors.Is(err, retry.ErrExhausted) {
		return result, err
	}
	return result, nil
}

// filterWindow reverses newest-first records to oldest-first and keeps those inside
// the query window, stopping at the limit or the first record past the window end
func filterWindow(records []models.Record, q models.Query) []models.Record {
	filtered := make([]models.Record, 0, min(q.Limit, len(records)))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		day := r.PublishedDay()
		if day.After(q.End) {
			break
		}
		if day.Before(q.Start) {
			continue
		}
		filtered = append(filtered, r)
		if len(filtered) >= q.Limit {
			break
		}
	}
	return filtered
}

func truncate(records []models.Record, limit int) []models.Record {
	if len(records) > limit {
		records = records[:limit]
	}
	out := make([]models.Record, len(records))
	copy(out, records)
	return out
}

func (s *RangeScraper) report(ctx context.Context, p Progress) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(p)
		return
	}
	if s.progress != nil {
		s.progress(p)
	}
}

func (s *RangeScraper) logInfo(msg string, keyvals ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, keyvals...)
	}
}

func (s *RangeScraper) logWarn(msg string, keyvals ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, keyvals...)
	}
}
