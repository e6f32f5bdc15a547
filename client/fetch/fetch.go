// Package fetch coordinates a search box, dropdown filters and pagination
// into exactly one outstanding list request. Issuing a new query cancels
// the previous one; a result is applied only when it is still the latest,
// so the displayed records never reflect a stale response that resolved
// out of order.
package fetch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultDebounce is the pause after the last keystroke before a search
// query is issued.
const DefaultDebounce = 300 * time.Millisecond

// Query is the combined list-request state.
type Query struct {
	Search   string
	Filters  map[string]string
	Page     int
	PageSize int
}

// Skip returns the record offset for the query's page.
func (q Query) Skip() int { return (q.Page - 1) * q.PageSize }

func (q Query) clone() Query {
	c := q
	c.Filters = make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		c.Filters[k] = v
	}
	return c
}

// Fetcher executes one list request. Implementations must honor ctx
// cancellation and return ctx.Err() when cancelled.
type Fetcher func(ctx context.Context, q Query) (records interface{}, total int, err error)

// State is a snapshot of the controller's displayed data.
type State struct {
	Query   Query
	Records interface{}
	Total   int
	Err     error
	Loading bool
}

// Controller owns the single in-flight request and the search debounce
// timer for one list view.
type Controller struct {
	mu       sync.Mutex
	fetcher  Fetcher
	debounce time.Duration
	onChange func(State)

	query   Query
	timer   *time.Timer
	gen     int
	cancel  context.CancelFunc
	records interface{}
	total   int
	err     error
	loading bool
	closed  bool

	pending   []State
	notifying bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the search debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(c *Controller) { c.query.PageSize = n }
}

// OnChange registers a callback invoked after every state change (query
// issued, result applied, error surfaced). Called without the lock held.
func OnChange(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// NewController creates a controller around a fetcher. No query is issued
// until the first SetSearch/SetFilter/SetPage/Refresh call.
func NewController(fetcher Fetcher, opts ...Option) *Controller {
	c := &Controller{
		fetcher:  fetcher,
		debounce: DefaultDebounce,
		query:    Query{Page: 1, PageSize: 25, Filters: map[string]string{}},
	}
	for _, o := range opts {
		o(c)
	}
	if c.query.PageSize < 1 {
		c.query.PageSize = 25
	}
	return c
}

// SetSearch updates the search text and issues a page-1 query after the
// debounce delay. Each call resets the timer, so a rapid burst of
// keystrokes produces exactly one query carrying the final text.
func (c *Controller) SetSearch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.query.Search = text
	c.query.Page = 1
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.issueLocked()
	})
}

// SetFilter updates one dropdown filter and issues an immediate page-1
// query. An empty value removes the filter.
func (c *Controller) SetFilter(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if value == "" {
		delete(c.query.Filters, key)
	} else {
		c.query.Filters[key] = value
	}
	c.query.Page = 1
	c.issueLocked()
}

// SetPage issues an immediate query at the requested page, keeping the
// current search and filters. Pages below 1 clamp to 1.
func (c *Controller) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if page < 1 {
		page = 1
	}
	c.query.Page = page
	c.issueLocked()
}

// Refresh re-issues the current query immediately.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.issueLocked()
}

// issueLocked starts a fetch for the current query, cancelling any
// predecessor. Caller holds c.mu.
func (c *Controller) issueLocked() {
	if c.timer != nil {
		// an immediate query supersedes a pending debounced search
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loading = true
	q := c.query.clone()
	c.notifyLocked()

	go func() {
		records, total, err := c.fetcher(ctx, q)

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen {
			// superseded while in flight; neither success nor error applies
			return
		}
		c.loading = false
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			// failed query keeps the previous records on screen
			c.err = err
			c.notifyLocked()
			return
		}
		c.records = records
		c.total = total
		c.err = nil
		c.notifyLocked()
	}()
}

// notifyLocked queues a snapshot for the change callback. Caller holds
// c.mu. Snapshots are drained by a single goroutine so they reach the
// consumer in the order they were taken; a loading snapshot can never
// land after the result of the same query.
func (c *Controller) notifyLocked() {
	if c.onChange == nil {
		return
	}
	c.pending = append(c.pending, c.stateLocked())
	if c.notifying {
		return
	}
	c.notifying = true
	go c.drainNotifications()
}

// drainNotifications delivers queued snapshots in order, releasing the
// lock around each callback.
func (c *Controller) drainNotifications() {
	c.mu.Lock()
	for len(c.pending) > 0 {
		st := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		c.onChange(st)
		c.mu.Lock()
	}
	c.notifying = false
	c.mu.Unlock()
}

func (c *Controller) stateLocked() State {
	return State{
		Query:   c.query.clone(),
		Records: c.records,
		Total:   c.total,
		Err:     c.err,
		Loading: c.loading,
	}
}

// State returns a snapshot of the displayed data.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close cancels any in-flight request and pending debounce timer. The
// controller issues no further queries afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++ // orphan any in-flight result
}
