package daycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-time-scheduler/internal/coverage"
	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/ports"
	"drive-time-scheduler/internal/routing"
)

type fakeRepo struct {
	mu      sync.Mutex
	jobs    []domain.ScheduledJob
	gates   map[time.Time]chan struct{}
	calls   []time.Time
	entered chan time.Time
}

func newFakeRepo(jobs ...domain.ScheduledJob) *fakeRepo {
	return &fakeRepo{jobs: jobs, gates: map[time.Time]chan struct{}{}, entered: make(chan time.Time, 16)}
}

func (r *fakeRepo) setJobs(jobs ...domain.ScheduledJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = jobs
}

func (r *fakeRepo) gate(from time.Time) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.gates[from] = ch
	return ch
}

func (r *fakeRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRepo) lastCall() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func (r *fakeRepo) ListJobs(ctx context.Context, from, to time.Time) ([]domain.ScheduledJob, error) {
	r.mu.Lock()
	r.calls = append(r.calls, from)
	gate := r.gates[from]
	r.mu.Unlock()

	select {
	case r.entered <- from:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScheduledJob
	for _, j := range r.jobs {
		if !j.Start.Before(from) && !j.Start.After(to) {
			out = append(out, j)
		}
	}
	return out, nil
}

// fakeProvider charges 10 minutes and 2 km per leg.
type fakeProvider struct {
	mu       sync.Mutex
	requests int
	fail     map[domain.DayKey]bool
	down     bool
}

func (p *fakeProvider) setDown(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down = down
}

func (p *fakeProvider) setFail(day domain.DayKey, fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail == nil {
		p.fail = map[domain.DayKey]bool{}
	}
	p.fail[day] = fail
}

func (p *fakeProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

func (p *fakeProvider) SummarizeRoutes(_ context.Context, reqs []ports.DayRouteRequest) ([]ports.DayRouteResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests += len(reqs)
	if p.down {
		return nil, errors.New("provider unreachable")
	}

	out := make([]ports.DayRouteResult, len(reqs))
	for i, req := range reqs {
		out[i] = ports.DayRouteResult{Key: req.Key, Day: req.Day}
		if p.fail[req.Day] {
			out[i].Err = errors.New("provider down")
			continue
		}
		segs := make([]domain.TravelSegment, 0, len(req.Stops))
		for n := 1; n < len(req.Stops); n++ {
			segs = append(segs, domain.TravelSegment{
				FromLabel:      req.Stops[n-1].Label,
				ToLabel:        req.Stops[n].Label,
				ToJobID:        req.Stops[n].JobID,
				TypicalMinutes: 10,
				Kilometers:     2,
			})
		}
		s := domain.NewDaySummary(req.Day, segs, req.Depot == "")
		out[i].Summary = &s
	}
	return out, nil
}

type countingRecorder struct {
	fetches  atomic.Int64
	stale    atomic.Int64
	failures atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
}

func (r *countingRecorder) CacheLookup(hit bool) {
	if hit {
		r.hits.Add(1)
		return
	}
	r.misses.Add(1)
}
func (r *countingRecorder) FetchIssued()                          { r.fetches.Add(1) }
func (r *countingRecorder) StaleResponse()                        { r.stale.Add(1) }
func (r *countingRecorder) ProviderFailures(n int)                { r.failures.Add(int64(n)) }
func (r *countingRecorder) RankCompleted(int, int, time.Duration) {}

func day(d string) time.Time {
	t, err := time.Parse("2006-01-02", d)
	if err != nil {
		panic(err)
	}
	return t
}

func visibleDay(d string) domain.DateInterval {
	start := day(d)
	return domain.DateInterval{Start: start, End: domain.EndOfDay(start)}
}

func job(id, d string, hour int, location string) domain.ScheduledJob {
	return domain.ScheduledJob{
		ID:              id,
		Title:           id,
		Location:        location,
		Start:           day(d).Add(time.Duration(hour) * time.Hour),
		DurationMinutes: 60,
	}
}

type harness struct {
	cache    *Cache
	repo     *fakeRepo
	provider *fakeProvider
	rec      *countingRecorder
}

func newHarness(t *testing.T, cfg Config, jobs ...domain.ScheduledJob) *harness {
	t.Helper()
	h := &harness{repo: newFakeRepo(jobs...), provider: &fakeProvider{}, rec: &countingRecorder{}}
	h.cache = New(cfg, Deps{
		Jobs:    h.repo,
		Engine:  routing.NewEngine(h.provider),
		Metrics: h.rec,
	})
	h.cache.SetDepot("1 Depot Rd")
	t.Cleanup(h.cache.Close)
	return h
}

func TestFetchAppliesSummariesAndCoverage(t *testing.T) {
	h := newHarness(t, DefaultConfig(),
		job("a", "2026-03-10", 9, "12 Elm St"),
		job("b", "2026-03-10", 13, "4 Oak Ave"),
	)

	require.NoError(t, h.cache.Fetch(context.Background(), visibleDay("2026-03-10")))

	s, ok := h.cache.Summary("2026-03-10")
	require.True(t, ok)
	assert.InDelta(t, 30.0, s.TotalTravelMinutes, 1e-9)
	assert.False(t, s.IsPartial)
	assert.Len(t, h.cache.Jobs("2026-03-10"), 2)

	empty, ok := h.cache.Summary("2026-03-11")
	require.True(t, ok)
	assert.Zero(t, empty.TotalTravelMinutes)

	covered := h.cache.Covered()
	require.Len(t, covered, 1)
	assert.True(t, covered[0].Start.Equal(day("2026-03-03")))
	assert.True(t, covered[0].End.Equal(domain.EndOfDay(day("2026-05-10"))))

	assert.True(t, h.cache.ObserveWindow(visibleDay("2026-04-01")))
	assert.Equal(t, Idle, h.cache.State())
	assert.Len(t, h.cache.Summaries(domain.DateInterval{Start: day("2026-03-09"), End: domain.EndOfDay(day("2026-03-11"))}), 3)
}

func TestStaleResponseIsDropped(t *testing.T) {
	h := newHarness(t, DefaultConfig(),
		job("jan", "2026-01-10", 9, "12 Elm St"),
		job("jun", "2026-06-10", 9, "4 Oak Ave"),
	)
	gateA := h.repo.gate(day("2026-01-03"))
	gateB := h.repo.gate(day("2026-06-03"))
	ctx := context.Background()
	before := h.cache.Token()

	errA := make(chan error, 1)
	go func() { errA <- h.cache.Fetch(ctx, visibleDay("2026-01-10")) }()
	<-h.repo.entered

	errB := make(chan error, 1)
	go func() { errB <- h.cache.Fetch(ctx, visibleDay("2026-06-10")) }()
	<-h.repo.entered

	close(gateB)
	require.NoError(t, <-errB)
	close(gateA)
	require.NoError(t, <-errA)

	assert.Equal(t, before+2, h.cache.Token())
	assert.Equal(t, int64(1), h.rec.stale.Load())

	covered := h.cache.Covered()
	require.Len(t, covered, 1)
	assert.True(t, covered[0].Start.Equal(day("2026-06-03")))

	_, ok := h.cache.Summary("2026-01-10")
	assert.False(t, ok)
	assert.Empty(t, h.cache.Jobs("2026-01-10"))
	_, ok = h.cache.Summary("2026-06-10")
	assert.True(t, ok)
	assert.False(t, h.cache.Pending())
}

func TestObserveWindowDebouncesToLastWindow(t *testing.T) {
	h := newHarness(t, Config{Debounce: 30 * time.Millisecond, DaysBefore: 7, MonthsAfter: 0})

	assert.False(t, h.cache.ObserveWindow(visibleDay("2026-01-10")))
	assert.False(t, h.cache.ObserveWindow(visibleDay("2026-02-10")))
	assert.False(t, h.cache.ObserveWindow(visibleDay("2026-03-10")))
	assert.Equal(t, Debouncing, h.cache.State())

	require.Eventually(t, func() bool {
		return h.repo.callCount() == 1 && !h.cache.Pending()
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, h.repo.callCount())
	assert.True(t, h.repo.lastCall().Equal(day("2026-03-03")))
	assert.True(t, h.cache.ObserveWindow(visibleDay("2026-03-10")))
	assert.False(t, h.cache.ObserveWindow(visibleDay("2026-01-10")))
}

func TestCoveredWindowCancelsPendingDebounce(t *testing.T) {
	h := newHarness(t, Config{Debounce: 30 * time.Millisecond, DaysBefore: 7, MonthsAfter: 0})
	require.NoError(t, h.cache.Fetch(context.Background(), visibleDay("2026-03-10")))
	require.Equal(t, 1, h.repo.callCount())

	assert.False(t, h.cache.ObserveWindow(visibleDay("2026-08-10")))
	assert.Equal(t, Debouncing, h.cache.State())
	assert.True(t, h.cache.ObserveWindow(visibleDay("2026-03-10")))
	assert.Equal(t, Idle, h.cache.State())

	time.Sleep(90 * time.Millisecond)
	assert.Equal(t, 1, h.repo.callCount())
	assert.False(t, h.cache.Pending())
}

func TestObserveWindowRejectsInvalidWindow(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	bad := domain.DateInterval{Start: day("2026-03-10"), End: day("2026-03-01")}
	before := h.cache.Token()
	assert.False(t, h.cache.ObserveWindow(bad))
	assert.Equal(t, Idle, h.cache.State())
	assert.Error(t, h.cache.Fetch(context.Background(), bad))
	assert.Equal(t, before, h.cache.Token())
}

func TestSetDepotResets(t *testing.T) {
	h := newHarness(t, DefaultConfig(), job("a", "2026-03-10", 9, "12 Elm St"))
	require.NoError(t, h.cache.Fetch(context.Background(), visibleDay("2026-03-10")))
	require.NotEmpty(t, h.cache.Covered())

	h.cache.SetDepot(" 1 Depot Rd ")
	assert.NotEmpty(t, h.cache.Covered(), "same depot must not reset")

	before := h.cache.Token()
	h.cache.SetDepot("9 Yard Ln")
	assert.Empty(t, h.cache.Covered())
	_, ok := h.cache.Summary("2026-03-10")
	assert.False(t, ok)
	assert.Empty(t, h.cache.Jobs("2026-03-10"))
	assert.Greater(t, h.cache.Token(), before)
	assert.Equal(t, Idle, h.cache.State())
}

func TestNotifyJobsResetsOnChangedSet(t *testing.T) {
	a := job("a", "2026-03-10", 9, "12 Elm St")
	h := newHarness(t, DefaultConfig(), a)
	require.NoError(t, h.cache.Fetch(context.Background(), visibleDay("2026-03-10")))

	assert.False(t, h.cache.NotifyJobs(visibleDay("2026-03-10"), []domain.ScheduledJob{a}))
	assert.False(t, h.cache.NotifyJobs(visibleDay("2026-03-12"), nil), "panning to an empty covered day")
	assert.False(t, h.cache.NotifyJobs(visibleDay("2026-07-01"), []domain.ScheduledJob{job("x", "2026-07-01", 9, "4 Oak Ave")}),
		"days not loaded yet")
	assert.NotEmpty(t, h.cache.Covered())

	moved := a
	moved.Start = moved.Start.Add(time.Hour)
	assert.True(t, h.cache.NotifyJobs(visibleDay("2026-03-10"), []domain.ScheduledJob{moved}))
	assert.Empty(t, h.cache.Covered())
	assert.Empty(t, h.cache.Jobs("2026-03-10"))
}

func TestNotifyJobsSeesAddedJob(t *testing.T) {
	a := job("a", "2026-03-10", 9, "12 Elm St")
	h := newHarness(t, Config{Debounce: 10 * time.Millisecond, DaysBefore: 7, MonthsAfter: 0}, a)
	require.NoError(t, h.cache.Fetch(context.Background(), visibleDay("2026-03-10")))

	b := job("b", "2026-03-10", 14, "4 Oak Ave")
	h.repo.setJobs(a, b)
	require.True(t, h.cache.NotifyJobs(visibleDay("2026-03-10"), []domain.ScheduledJob{a, b}))
	assert.False(t, h.cache.ObserveWindow(visibleDay("2026-03-10")))

	require.Eventually(t, func() bool {
		return h.cache.Covers(visibleDay("2026-03-10")) && !h.cache.Pending()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, h.cache.Jobs("2026-03-10"), 2)
	s, ok := h.cache.Summary("2026-03-10")
	require.True(t, ok)
	assert.InDelta(t, 30.0, s.TotalTravelMinutes, 1e-9)
}

func TestResetMakesInFlightFetchStale(t *testing.T) {
	h := newHarness(t, DefaultConfig(), job("a", "2026-03-10", 9, "12 Elm St"))
	gate := h.repo.gate(day("2026-03-03"))

	done := make(chan error, 1)
	go func() { done <- h.cache.Fetch(context.Background(), visibleDay("2026-03-10")) }()
	<-h.repo.entered

	h.cache.SetDepot("9 Yard Ln")
	close(gate)
	require.NoError(t, <-done)

	assert.Empty(t, h.cache.Covered())
	assert.Equal(t, int64(1), h.rec.stale.Load())
}

func TestFingerprintGatingSkipsUnchangedDays(t *testing.T) {
	a := job("a", "2026-03-10", 9, "12 Elm St")
	b := job("b", "2026-03-12", 9, "4 Oak Ave")
	h := newHarness(t, DefaultConfig(), a, b)
	ctx := context.Background()

	require.NoError(t, h.cache.Fetch(ctx, visibleDay("2026-03-10")))
	assert.Equal(t, 2, h.provider.requestCount())

	require.NoError(t, h.cache.Fetch(ctx, visibleDay("2026-03-10")))
	assert.Equal(t, 2, h.provider.requestCount())

	b2 := job("b2", "2026-03-12", 14, "7 Pine Ct")
	h.repo.setJobs(a, b, b2)
	require.NoError(t, h.cache.Fetch(ctx, visibleDay("2026-03-10")))
	assert.Equal(t, 3, h.provider.requestCount())

	s, ok := h.cache.Summary("2026-03-12")
	require.True(t, ok)
	assert.InDelta(t, 30.0, s.TotalTravelMinutes, 1e-9)
}

func TestProviderFailureKeepsPreviousSummary(t *testing.T) {
	a := job("a", "2026-03-10", 9, "12 Elm St")
	b := job("b", "2026-03-12", 9, "4 Oak Ave")
	h := newHarness(t, DefaultConfig(), a, b)
	ctx := context.Background()

	require.NoError(t, h.cache.Fetch(ctx, visibleDay("2026-03-10")))

	h.repo.setJobs(a, job("a2", "2026-03-10", 14, "7 Pine Ct"), b)
	h.provider.setFail("2026-03-10", true)
	require.NoError(t, h.cache.Fetch(ctx, visibleDay("2026-03-10")))

	s, ok := h.cache.Summary("2026-03-10")
	require.True(t, ok)
	assert.InDelta(t, 20.0, s.TotalTravelMinutes, 1e-9, "stale summary is kept")
	assert.Equal(t, int64(1), h.rec.failures.Load())

	failedDay, err := domain.DayKey("2026-03-10").Interval()
	require.NoError(t, err)
	assert.False(t, coverage.IsCovered(failedDay, h.cache.Covered()))
	assert.False(t, h.cache.ObserveWindow(visibleDay("2026-03-10")))
	assert.True(t, h.cache.ObserveWindow(visibleDay("2026-03-12")))

	h.provider.setFail("2026-03-10", false)
	require.NoError(t, h.cache.Fetch(ctx, visibleDay("2026-03-10")))
	s, _ = h.cache.Summary("2026-03-10")
	assert.InDelta(t, 30.0, s.TotalTravelMinutes, 1e-9)
	assert.True(t, coverage.IsCovered(failedDay, h.cache.Covered()))
}

func TestBatchFailureStillAppliesDaysWithoutLegs(t *testing.T) {
	h := newHarness(t, DefaultConfig(), job("a", "2026-03-10", 9, "12 Elm St"))
	h.provider.setDown(true)

	window := domain.DateInterval{Start: day("2026-03-09"), End: domain.EndOfDay(day("2026-03-11"))}
	require.NoError(t, h.cache.Fetch(context.Background(), window))

	_, ok := h.cache.Summary("2026-03-10")
	assert.False(t, ok)
	assert.Equal(t, int64(1), h.rec.failures.Load())

	empty, ok := h.cache.Summary("2026-03-11")
	require.True(t, ok)
	assert.Zero(t, empty.TotalTravelMinutes)
	assert.Len(t, h.cache.Jobs("2026-03-10"), 1)

	failedDay, err := domain.DayKey("2026-03-10").Interval()
	require.NoError(t, err)
	emptyDay, err := domain.DayKey("2026-03-11").Interval()
	require.NoError(t, err)
	assert.False(t, coverage.IsCovered(failedDay, h.cache.Covered()))
	assert.True(t, coverage.IsCovered(emptyDay, h.cache.Covered()))
	assert.Len(t, h.cache.Covered(), 2)

	h.provider.setDown(false)
	require.NoError(t, h.cache.Fetch(context.Background(), window))
	s, ok := h.cache.Summary("2026-03-10")
	require.True(t, ok)
	assert.InDelta(t, 20.0, s.TotalTravelMinutes, 1e-9)
	assert.Len(t, h.cache.Covered(), 1)
}

type memStore struct {
	mu   sync.Mutex
	data map[ports.SummaryKey]domain.DaySummary
}

func (m *memStore) Get(_ context.Context, k ports.SummaryKey) (*domain.DaySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[k]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) Put(_ context.Context, k ports.SummaryKey, s domain.DaySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[ports.SummaryKey]domain.DaySummary{}
	}
	m.data[k] = s
	return nil
}

func TestSharedStoreServesSecondSession(t *testing.T) {
	store := &memStore{}
	repo := newFakeRepo(job("a", "2026-03-10", 9, "12 Elm St"))
	provider := &fakeProvider{}
	newCache := func() *Cache {
		c := New(DefaultConfig(), Deps{Jobs: repo, Engine: routing.NewEngine(provider), Store: store})
		c.SetDepot("1 Depot Rd")
		return c
	}

	first := newCache()
	defer first.Close()
	require.NoError(t, first.Fetch(context.Background(), visibleDay("2026-03-10")))
	require.Equal(t, 1, provider.requestCount())

	second := newCache()
	defer second.Close()
	require.NoError(t, second.Fetch(context.Background(), visibleDay("2026-03-10")))
	assert.Equal(t, 1, provider.requestCount())

	s, ok := second.Summary("2026-03-10")
	require.True(t, ok)
	assert.InDelta(t, 20.0, s.TotalTravelMinutes, 1e-9)
}

func TestLookupAndPut(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	fp := domain.Fingerprint([]domain.ScheduledJob{job("a", "2026-03-10", 9, "12 Elm St")})
	summary := domain.NewDaySummary("2026-03-10", nil, false)
	summary.TotalTravelMinutes = 42

	_, ok := h.cache.Lookup(ctx, "1 Depot Rd", "2026-03-10", fp)
	assert.False(t, ok)

	h.cache.Put(ctx, "1 Depot Rd", "2026-03-10", fp, summary)
	got, ok := h.cache.Lookup(ctx, "1 Depot Rd", "2026-03-10", fp)
	require.True(t, ok)
	assert.InDelta(t, 42.0, got.TotalTravelMinutes, 1e-9)

	_, ok = h.cache.Lookup(ctx, "9 Yard Ln", "2026-03-10", fp)
	assert.False(t, ok, "other depot")
	_, ok = h.cache.Lookup(ctx, "1 Depot Rd", "2026-03-10", domain.EmptyFingerprint)
	assert.False(t, ok, "other fingerprint")

	assert.Equal(t, int64(1), h.rec.hits.Load())
	assert.Equal(t, int64(3), h.rec.misses.Load())
}

func TestClosedCacheRejectsFetch(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.cache.Close()

	assert.ErrorIs(t, h.cache.Fetch(context.Background(), visibleDay("2026-03-10")), ErrClosed)
	assert.False(t, h.cache.ObserveWindow(visibleDay("2026-03-10")))
}
