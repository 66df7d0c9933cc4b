// Package controller owns the application's search state: the current query,
// whether a scrape is running, and its outcome.
//
// Transitions: Submit moves to Scraping; the returned run function moves to Done
// or Failed. A newer Submit cancels the running scrape and its outcome is dropped.
package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/arxived/internal/models"
)

// State is the controller's lifecycle phase
type State int

const (
	StateIdle State = iota
	StateScraping
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScraping:
		return "scraping"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Scraper runs a query to completion
type Scraper interface {
	Scrape(ctx context.Context, q models.Query) (models.ResultSet, error)
}

// Snapshot is a consistent copy of controller state for rendering
type Snapshot struct {
	State      State
	Generation uint64
	Query      models.Query
	Results    models.ResultSet
	Err        error
}

// Outcome is what a run produced
type Outcome struct {
	Generation uint64
	Results    models.ResultSet
	Err        error
	Stale      bool // superseded by a newer Submit; discard
}

// Run executes a submitted scrape and blocks until it finishes
type Run func() Outcome

// Controller serialises query submissions
type Controller struct {
	mu      sync.Mutex
	scraper Scraper
	logger  *log.Logger

	state   State
	gen     uint64
	query   models.Query
	results models.ResultSet
	err     error
	cancel  context.CancelFunc
}

// New creates an idle controller. logger may be nil.
func New(scraper Scraper, logger *log.Logger) *Controller {
	return &Controller{scraper: scraper, logger: logger}
}

// Submit replaces the current query and returns the function that performs the
// scrape. Any scrape still running is cancelled.
func (c *Controller) Submit(parent context.Context, q models.Query) Run {
	return c.SubmitWith(parent, q, nil)
}

// Prepare decorates the context of a submitted scrape with its generation
type Prepare func(ctx context.Context, gen uint64) context.Context

// SubmitWith is Submit with a hook that can attach per-run values, such as a
// progress callback tagged with the run's generation, to the scrape context.
func (c *Controller) SubmitWith(parent context.Context, q models.Query, prepare Prepare) Run {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.gen++
	gen := c.gen
	if prepare != nil {
		ctx = prepare(ctx, gen)
	}
	c.cancel = cancel
	c.state = StateScraping
	c.query = q
	c.results = models.ResultSet{Query: q}
	c.err = nil
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("Query submitted", "query", q.String(), "generation", gen)
	}

	return func() Outcome {
		defer cancel()
		rs, err := c.scraper.Scrape(ctx, q)
		return c.complete(gen, rs, err)
	}
}

// complete records a finished scrape unless a newer one has been submitted
func (c *Controller) complete(gen uint64, rs models.ResultSet, err error) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		if c.logger != nil {
			c.logger.Debug("Discarding superseded scrape", "generation", gen, "current", c.gen)
		}
		return Outcome{Generation: gen, Stale: true}
	}

	c.cancel = nil
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.state = StateIdle
		} else {
			c.state = StateFailed
		}
		c.err = err
		if c.logger != nil {
			c.logger.Error("Scrape failed", "query", c.query.String(), "error", err)
		}
		return Outcome{Generation: gen, Err: err}
	}

	c.state = StateDone
	c.results = rs
	if c.logger != nil {
		c.logger.Info("Scrape complete", "query", c.query.String(), "entries", rs.Len())
	}
	return Outcome{Generation: gen, Results: rs}
}

// Cancel abandons the running scrape, if any, and returns to idle
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.gen++
	c.state = StateIdle
}

// IsCurrent reports whether gen is the latest submission
func (c *Controller) IsCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// Generation returns the latest submission number
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:      c.state,
		Generation: c.gen,
		Query:      c.query,
		Results:    c.results,
		Err:        c.err,
	}
}
