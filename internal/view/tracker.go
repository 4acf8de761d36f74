package view

import (
	"errors"
	"sync"
	"time"

	"github.com/energysys/dashboard/internal/metrics"
	"github.com/energysys/dashboard/internal/paging"
)

var (
	// ErrStale is returned when a newer query was issued for the same
	// session and view after the one being committed.
	ErrStale = errors.New("view: superseded by a newer query")

	// ErrNoResult is returned when paging a view that has no result yet.
	ErrNoResult = errors.New("view: no result to page")
)

// Result is the retained outcome of one view query.
type Result struct {
	QueryID   string
	View      string
	Summary   interface{}
	Records   []interface{}
	PerPage   int
	Radius    int
	CreatedAt time.Time
}

// Response is one rendered page of a Result.
type Response struct {
	QueryID    string        `json:"query_id"`
	View       string        `json:"view"`
	Summary    interface{}   `json:"summary"`
	Records    []interface{} `json:"records"`
	Pagination paging.Window `json:"pagination"`
}

// Render returns page n of r. The page is clamped into range.
func (r *Result) Render(n int) Response {
	w := paging.Paginate(len(r.Records), r.PerPage, n, r.Radius)
	records := paging.Slice(r.Records, w.CurrentPage, r.PerPage)
	if records == nil {
		records = []interface{}{}
	}
	return Response{
		QueryID:    r.QueryID,
		View:       r.View,
		Summary:    r.Summary,
		Records:    records,
		Pagination: w,
	}
}

type key struct {
	session string
	view    string
}

type entry struct {
	latest  uint64
	result  *Result
	page    int
	touched time.Time
}

// Tracker retains the latest result of every (session, view) pair and
// decides which in-flight query may replace it. Each Begin issues a new
// generation; only the latest generation may commit.
type Tracker struct {
	mu      sync.Mutex
	entries map[key]*entry
	gen     uint64
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[key]*entry), now: time.Now}
}

func (t *Tracker) entry(session, view string) *entry {
	k := key{session, view}
	e, ok := t.entries[k]
	if !ok {
		e = &entry{page: 1}
		t.entries[k] = e
		metrics.ViewSessions.Set(float64(len(t.entries)))
	}
	e.touched = t.now()
	return e
}

// Begin starts a query and returns its generation.
func (t *Tracker) Begin(session, view string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.entry(session, view).latest = t.gen
	return t.gen
}

// Commit stores r as the current result and resets the page to 1, unless a
// newer query has begun since gen was issued.
func (t *Tracker) Commit(session, view string, gen uint64, r *Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(session, view)
	if gen != e.latest {
		metrics.StaleDiscards.WithLabelValues(view).Inc()
		return ErrStale
	}
	e.result = r
	e.page = 1
	return nil
}

// Fail records that query gen failed. The previous result, if any, is
// kept and returned. ErrStale is returned when gen was superseded.
func (t *Tracker) Fail(session, view string, gen uint64) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(session, view)
	if gen != e.latest {
		metrics.StaleDiscards.WithLabelValues(view).Inc()
		return e.result, ErrStale
	}
	return e.result, nil
}

// Current returns the retained result and the page being shown.
func (t *Tracker) Current(session, view string) (*Result, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key{session, view}]
	if !ok || e.result == nil {
		return nil, 0, false
	}
	return e.result, e.page, true
}

// Page moves the session to page n of its retained result without
// refetching.
func (t *Tracker) Page(session, view string, n int) (Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key{session, view}]
	if !ok || e.result == nil {
		return Response{}, ErrNoResult
	}
	e.touched = t.now()
	resp := e.result.Render(n)
	e.page = resp.Pagination.CurrentPage
	return resp, nil
}

// Evict drops state not touched within idle and returns how many entries
// were removed.
func (t *Tracker) Evict(idle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-idle)
	removed := 0
	for k, e := range t.entries {
		if e.touched.Before(cutoff) {
			delete(t.entries, k)
			removed++
		}
	}
	metrics.ViewSessions.Set(float64(len(t.entries)))
	return removed
}
