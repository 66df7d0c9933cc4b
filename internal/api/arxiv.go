package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mmcdole/gofeed/atom"
	"github.com/thesavant42/arxived/internal/models"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "http://export.arxiv.org/api/query"
	arxivTimeout       = 60 * time.Second
	arxivUserAgent     = "arxived/1.0 (+https://github.com/thesavant42/arxived)"
	defaultMinInterval = time.Second
)

// ErrMalformedFeed means the API answered but the body was not a readable Atom feed.
// Callers treat it like an empty page.
var ErrMalformedFeed = errors.New("malformed feed")

// SearchAPI performs a single paged query against a paper search endpoint
type SearchAPI interface {
	FetchPage(ctx context.Context, topic string, offset, pageSize int) ([]models.Record, error)
}

// ArxivClient handles arXiv search API requests
type ArxivClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *log.Logger
}

// ClientOption configures an ArxivClient
type ClientOption func(*ArxivClient)

// WithBaseURL points the client at a different endpoint (tests, mirrors)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *ArxivClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTimeout sets the per-request HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ArxivClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *ArxivClient) {
		c.httpClient = httpClient
	}
}

// WithMinInterval spaces consecutive requests by at least d. Zero disables spacing.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *ArxivClient) {
		if d <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewArxivClient creates a new arXiv API client. logger may be nil.
func NewArxivClient(logger *log.Logger, opts ...ClientOption) *ArxivClient {
	c := &ArxivClient{
		httpClient: &http.Client{
			Timeout: arxivTimeout,
		},
		baseURL: DefaultBaseURL,
		limiter: rate.NewLimiter(rate.Every(defaultMinInterval), 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildSearchQuery constructs the raw query string for one page of results.
// Results are ordered by submission date, newest first. The topic is sent as a
// phrase, so double quotes inside it are dropped.
func BuildSearchQuery(topic string, offset, pageSize int) string {
	phrase := strings.TrimSpace(strings.ReplaceAll(topic, `"`, ""))
	v := url.Values{}
	v.Set("search_query", `all:"`+phrase+`"`)
	v.Set("sortBy", "submittedDate")
	v.Set("sortOrder", "descending")
	v.Set("start", strconv.Itoa(offset))
	v.Set("max_results", strconv.Itoa(pageSize))
	return v.Encode()
}

// FetchPage fetches one page of search results.
// An empty feed yields an empty slice and a nil error.
func (c *ArxivClient) FetchPage(ctx context.Context, topic string, offset, pageSize int) ([]models.Record, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	rawURL := c.baseURL + "?" + BuildSearchQuery(topic, offset, pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", arxivUserAgent)
	req.Header.Set("Accept", "application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	if c.logger != nil {
		c.logger.Debug("GET", "endpoint", rawURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("Request failed", "offset", offset, "error", err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if c.logger != nil {
			c.logger.Error("API error", "status", resp.StatusCode, "response", string(body))
		}
		return nil, fmt.Errorf("arXiv API returned status %d: %s", resp.StatusCode, string(body))
	}

	records, err := ParseFeed(resp.Body)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("Unreadable feed", "offset", offset, "error", err)
		}
		return nil, err
	}

	if c.logger != nil {
		c.logger.Debug("Page fetched", "offset", offset, "pageSize", pageSize, "entries", len(records))
	}
	return records, nil
}

// ParseFeed converts an arXiv Atom response into records, preserving entry order
func ParseFeed(r io.Reader) ([]models.Record, error) {
	fp := &atom.Parser{}
	feed, err := fp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFeed, err)
	}

	records := make([]models.Record, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if entry == nil {
			continue
		}
		records = append(records, entryToRecord(entry))
	}
	return records, nil
}

// entryToRecord maps one Atom entry to a Record.
// arXiv emits the abstract page link first and the PDF link second; the second
// link is the one we surface.
func entryToRecord(entry *atom.Entry) models.Record {
	record := models.Record{
		Title:   models.CleanText(entry.Title),
		Summary: models.CleanText(entry.Summary),
		Link:    models.CleanText(entryLink(entry)),
	}

	for _, author := range entry.Authors {
		if author == nil {
			continue
		}
		if name := models.CleanText(author.Name); name != "" {
			record.Authors = append(record.Authors, name)
		}
	}

	if entry.PublishedParsed != nil {
		record.Published = entry.PublishedParsed.UTC()
	} else if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		record.Published = t.UTC()
	}

	return record
}

func entryLink(entry *atom.Entry) string {
	var hrefs []string
	for _, l := range entry.Links {
		if l != nil && l.Href != "" {
			hrefs = append(hrefs, l.Href)
		}
	}
	switch {
	case len(hrefs) >= 2:
		return hrefs[1]
	case len(hrefs) == 1:
		return hrefs[0]
	default:
		return entry.ID
	}
}
