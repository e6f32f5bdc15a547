package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingFetcher counts calls and records the queries it saw.
type recordingFetcher struct {
	mu      sync.Mutex
	queries []Query
	results map[string]interface{} // keyed by search text
}

func (f *recordingFetcher) fetch(ctx context.Context, q Query) (interface{}, int, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.results != nil {
		if r, ok := f.results[q.Search]; ok {
			return r, 1, nil
		}
	}
	return []string{"row"}, 1, nil
}

func (f *recordingFetcher) seen() []Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Query(nil), f.queries...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSearchDebounceCoalesces(t *testing.T) {
	f := &recordingFetcher{}
	c := NewController(f.fetch, WithDebounce(30*time.Millisecond))
	defer c.Close()

	for _, s := range []string{"S", "Si", "Sit", "Site"} {
		c.SetSearch(s)
		time.Sleep(5 * time.Millisecond) // well within the debounce window
	}

	waitFor(t, func() bool { return len(f.seen()) >= 1 })
	time.Sleep(60 * time.Millisecond) // no trailing extra query
	queries := f.seen()
	require.Len(t, queries, 1, "N keystrokes inside the window issue one query")
	assert.Equal(t, "Site", queries[0].Search, "query carries the last keystroke's value")
	assert.Equal(t, 1, queries[0].Page, "search resets to page 1")
}

func TestFilterAndPageAreImmediate(t *testing.T) {
	f := &recordingFetcher{}
	c := NewController(f.fetch, WithDebounce(time.Hour)) // debounce must not matter
	defer c.Close()

	c.SetFilter("status", "approved")
	waitFor(t, func() bool { return len(f.seen()) == 1 })
	assert.Equal(t, "approved", f.seen()[0].Filters["status"])
	assert.Equal(t, 1, f.seen()[0].Page)

	c.SetPage(3)
	waitFor(t, func() bool { return len(f.seen()) == 2 })
	q := f.seen()[1]
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, "approved", q.Filters["status"], "page change keeps filters")
}

func TestStaleResponseDiscarded(t *testing.T) {
	// A starts first and resolves last; the displayed records must be B's.
	releaseA := make(chan struct{})
	releaseB := make(chan struct{})
	var calls int
	var mu sync.Mutex

	fetcher := func(ctx context.Context, q Query) (interface{}, int, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			<-releaseA
			return "result A", 10, nil
		}
		<-releaseB
		return "result B", 20, nil
	}

	c := NewController(fetcher)
	defer c.Close()

	c.SetFilter("region", "north") // query A
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return calls == 1 })
	c.SetFilter("region", "south") // query B supersedes A
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return calls == 2 })

	close(releaseB)
	waitFor(t, func() bool { return c.State().Records != nil })
	close(releaseA) // A resolves after B
	time.Sleep(50 * time.Millisecond)

	st := c.State()
	assert.Equal(t, "result B", st.Records)
	assert.Equal(t, 20, st.Total)
}

func TestCancelledFetchIsSilent(t *testing.T) {
	started := make(chan struct{}, 2)
	fetcher := func(ctx context.Context, q Query) (interface{}, int, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, 0, ctx.Err()
	}
	c := NewController(fetcher)
	defer c.Close()

	c.SetPage(1)
	<-started
	c.SetPage(2) // cancels the first
	<-started

	time.Sleep(50 * time.Millisecond)
	st := c.State()
	assert.NoError(t, st.Err, "cancellation never surfaces as an error")
}

func TestFailureKeepsPreviousRecords(t *testing.T) {
	var calls int
	var mu sync.Mutex
	fetcher := func(ctx context.Context, q Query) (interface{}, int, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return "good", 5, nil
		}
		return nil, 0, errors.New("backend down")
	}
	c := NewController(fetcher)
	defer c.Close()

	c.Refresh()
	waitFor(t, func() bool { return c.State().Records != nil })

	c.Refresh()
	waitFor(t, func() bool { return c.State().Err != nil })

	st := c.State()
	assert.Equal(t, "good", st.Records, "previous records stay on screen")
	assert.Equal(t, 5, st.Total)
	assert.EqualError(t, st.Err, "backend down")
}

func TestSnapshotsArriveInOrder(t *testing.T) {
	// The loading snapshot for a query must never land after its result.
	var mu sync.Mutex
	var got []State

	fetcher := func(ctx context.Context, q Query) (interface{}, int, error) {
		return "fresh", 7, nil
	}
	c := NewController(fetcher, OnChange(func(st State) {
		mu.Lock()
		got = append(got, st)
		mu.Unlock()
	}))
	defer c.Close()

	for i := 0; i < 20; i++ {
		c.Refresh()
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && !got[len(got)-1].Loading
	})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	last := got[len(got)-1]
	require.False(t, last.Loading, "a stale loading snapshot trailed the result")
	assert.Equal(t, "fresh", last.Records)
	assert.Equal(t, 7, last.Total)
}

func TestFilterSupersedesPendingSearch(t *testing.T) {
	f := &recordingFetcher{}
	c := NewController(f.fetch, WithDebounce(30*time.Millisecond))
	defer c.Close()

	c.SetSearch("tower")
	c.SetFilter("status", "approved") // fires immediately, debounce must not add a second query

	waitFor(t, func() bool { return len(f.seen()) == 1 })
	time.Sleep(60 * time.Millisecond) // past the debounce window
	queries := f.seen()
	require.Len(t, queries, 1, "the immediate query replaces the debounced one")
	assert.Equal(t, "tower", queries[0].Search, "pending search text still applies")
	assert.Equal(t, "approved", queries[0].Filters["status"])
}

func TestSkip(t *testing.T) {
	assert.Equal(t, 0, Query{Page: 1, PageSize: 25}.Skip())
	assert.Equal(t, 50, Query{Page: 3, PageSize: 25}.Skip())
}

func TestCloseStopsPendingDebounce(t *testing.T) {
	f := &recordingFetcher{}
	c := NewController(f.fetch, WithDebounce(20*time.Millisecond))
	c.SetSearch("abc")
	c.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.seen(), 0, "closed controller issues nothing")
}
