package publish

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/pagepub/internal/forge"
)

// fakeClock replaces real waiting: sleeps advance the clock instantly, so
// poll schedules measured in seconds run in microseconds of test time.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingStatus answers with a fixed status and counts probes.
type countingStatus struct {
	mu     sync.Mutex
	status int
	calls  int
}

func (s *countingStatus) RoundTrip(r *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return staticStatus(s.status).RoundTrip(r)
}

func (s *countingStatus) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newPollerPipeline(t *testing.T, f *forge.FakeForge, clock *fakeClock, transport http.RoundTripper) *Pipeline {
	t.Helper()
	p := newTestPipeline(t, f)
	p.opts.PollTimeout = 60 * time.Second
	p.opts.PollInterval = 15 * time.Second
	p.opts.PollGrace = 30 * time.Second
	p.now = clock.Now
	p.sleep = clock.Sleep
	p.httpClient = &http.Client{Transport: transport}
	return p
}

func TestAwaitLiveTimesOut(t *testing.T) {
	f := forge.NewFakeForge("tester")
	f.SeedRepository("site")
	clock := newFakeClock()
	transport := &countingStatus{status: http.StatusNotFound}
	p := newPollerPipeline(t, f, clock, transport)

	start := clock.Now()
	live := p.awaitLive(context.Background(), Task{Name: "site", Round: 1}, "https://tester.pages.example/site/")

	assert.False(t, live)
	elapsed := clock.Now().Sub(start)
	assert.LessOrEqual(t, elapsed, 60*time.Second, "poll must give up no later than the timeout")
	// Grace at 30, probes at 30 and 45, next wake-up hits the timeout.
	assert.Equal(t, 2, transport.Calls())
}

func TestAwaitLiveReturnsOnSuccess(t *testing.T) {
	f := forge.NewFakeForge("tester")
	f.SeedRepository("site")
	clock := newFakeClock()
	transport := &countingStatus{status: http.StatusOK}
	p := newPollerPipeline(t, f, clock, transport)

	live := p.awaitLive(context.Background(), Task{Name: "site", Round: 1}, "https://tester.pages.example/site/")

	assert.True(t, live)
	assert.Equal(t, 1, transport.Calls())
	// Only the initial grace period elapsed before the first hit.
	assert.Equal(t, 30*time.Second, clock.Now().Sub(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAwaitLiveGraceCappedByTimeout(t *testing.T) {
	f := forge.NewFakeForge("tester")
	f.SeedRepository("site")
	clock := newFakeClock()
	transport := &countingStatus{status: http.StatusBadGateway}
	p := newPollerPipeline(t, f, clock, transport)
	p.opts.PollTimeout = 10 * time.Second // shorter than the 30s grace

	start := clock.Now()
	live := p.awaitLive(context.Background(), Task{Name: "site", Round: 1}, "https://tester.pages.example/site/")

	assert.False(t, live)
	assert.LessOrEqual(t, clock.Now().Sub(start), 10*time.Second)
}

func TestAwaitLiveBuildRequestFailureIsNonFatal(t *testing.T) {
	f := forge.NewFakeForge("tester")
	f.SeedRepository("site")
	f.PagesBuildHook = func(int) error { return forge.ErrPermissionDenied }
	clock := newFakeClock()
	transport := &countingStatus{status: http.StatusOK}
	p := newPollerPipeline(t, f, clock, transport)

	live := p.awaitLive(context.Background(), Task{Name: "site", Round: 1}, "https://tester.pages.example/site/")
	assert.True(t, live, "a failed build trigger must not abort polling")
}
