// Package daycache keeps one calendar session's knowledge of travel per day.
//
// A Cache moves between three states. It is Idle until a visible window that
// is not yet covered is observed, Debouncing while further window changes keep
// arriving, and Fetching once the debounce timer fires. Every fetch carries a
// strictly increasing token and only the response to the latest token is
// applied; older responses are dropped without being surfaced.
package daycache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"drive-time-scheduler/internal/coverage"
	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/platform/logger"
	"drive-time-scheduler/internal/platform/metrics"
	"drive-time-scheduler/internal/ports"
	"drive-time-scheduler/internal/routing"
)

const (
	DefaultDebounce    = 300 * time.Millisecond
	DefaultDaysBefore  = 7
	DefaultMonthsAfter = 2
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("day summary cache is closed")

type State int

const (
	Idle State = iota
	Debouncing
	Fetching
)

func (s State) String() string {
	switch s {
	case Debouncing:
		return "debouncing"
	case Fetching:
		return "fetching"
	default:
		return "idle"
	}
}

// Config tunes the debounce delay and the padded fetch window.
type Config struct {
	Debounce    time.Duration
	DaysBefore  int
	MonthsAfter int
}

func DefaultConfig() Config {
	return Config{Debounce: DefaultDebounce, DaysBefore: DefaultDaysBefore, MonthsAfter: DefaultMonthsAfter}
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.DaysBefore < 0 {
		c.DaysBefore = DefaultDaysBefore
	}
	if c.MonthsAfter < 0 {
		c.MonthsAfter = DefaultMonthsAfter
	}
	return c
}

// Deps are the collaborators of a Cache. Store, Log and Metrics are optional.
type Deps struct {
	Jobs    ports.JobRepository
	Engine  *routing.Engine
	Store   ports.DaySummaryStore
	Log     logger.Logger
	Metrics metrics.Recorder
}

type entry struct {
	fingerprint domain.DayFingerprint
	summary     domain.DaySummary
}

// Cache is owned by one session and never shared between sessions.
// All mutation happens under mu; provider calls run without it.
type Cache struct {
	cfg    Config
	jobs   ports.JobRepository
	engine *routing.Engine
	store  ports.DaySummaryStore
	log    logger.Logger
	rec    metrics.Recorder

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	depot     string
	tracker   *coverage.Tracker
	jobsByDay map[domain.DayKey][]domain.ScheduledJob
	entries   map[domain.DayKey]entry
	latest    uint64
	resolved  uint64
	timer     *time.Timer
	timerGen  uint64
	visible   domain.DateInterval
	closed    bool
}

func New(cfg Config, deps Deps) *Cache {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		cfg:       cfg,
		jobs:      deps.Jobs,
		engine:    deps.Engine,
		store:     deps.Store,
		log:       logger.OrNop(deps.Log),
		rec:       metrics.OrNop(deps.Metrics),
		ctx:       ctx,
		cancel:    cancel,
		tracker:   coverage.NewTracker(cfg.DaysBefore, cfg.MonthsAfter),
		jobsByDay: make(map[domain.DayKey][]domain.ScheduledJob),
		entries:   make(map[domain.DayKey]entry),
	}
}

// ObserveWindow is called on every visible-window change. It reports whether
// the window is already covered. Uncovered windows (re)start the debounce
// timer; only the last window before a pause is fetched. Invalid windows are
// not coverable and leave the cache untouched.
func (c *Cache) ObserveWindow(visible domain.DateInterval) bool {
	if !visible.Valid() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if c.tracker.Covers(visible) {
		// The covered window is now the latest one; a pending fetch for an
		// earlier window must not fire.
		c.stopTimerLocked()
		return true
	}

	c.visible = visible
	c.stopTimerLocked()
	gen := c.timerGen
	c.timer = time.AfterFunc(c.cfg.Debounce, func() { c.fire(gen) })
	return false
}

// stopTimerLocked cancels a pending debounce. Bumping the generation also
// disarms a timer whose callback is already waiting for mu.
func (c *Cache) stopTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Cache) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	visible := c.visible
	c.mu.Unlock()

	if err := c.Fetch(c.ctx, visible); err != nil && !errors.Is(err, ErrClosed) {
		c.log.Warnf("fetch for window %s..%s failed: %v", domain.DayKeyOf(visible.Start), domain.DayKeyOf(visible.End), err)
	}
}

// fetchResult is everything a response would apply.
type fetchResult struct {
	window  domain.DateInterval
	grouped map[domain.DayKey][]domain.ScheduledJob
	fresh   map[domain.DayKey]entry
	failed  []domain.DayKey
}

// Fetch loads jobs for the padded window around visible, summarizes the days
// whose fingerprint changed and applies the outcome if no newer fetch was
// issued meanwhile. A superseded response returns nil.
func (c *Cache) Fetch(ctx context.Context, visible domain.DateInterval) error {
	if !visible.Valid() {
		return fmt.Errorf("fetch: invalid window %s..%s", visible.Start, visible.End)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.latest++
	token := c.latest
	window := c.fetchWindow(visible)
	depot := c.depot
	known := make(map[domain.DayKey]domain.DayFingerprint, len(c.entries))
	for day, e := range c.entries {
		known[day] = e.fingerprint
	}
	c.mu.Unlock()

	c.rec.FetchIssued()
	c.log.Debugf("fetch token=%d window=%s..%s", token, domain.DayKeyOf(window.Start), domain.DayKeyOf(window.End))

	res, err := c.load(ctx, window, depot, known)

	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.latest {
		c.rec.StaleResponse()
		c.log.Debugf("dropping stale response token=%d latest=%d", token, c.latest)
		return nil
	}
	c.resolved = token

	if err != nil {
		return fmt.Errorf("fetch token=%d: %w", token, err)
	}
	c.apply(res)
	return nil
}

// fetchWindow widens the padded window so it always spans the visible one.
func (c *Cache) fetchWindow(visible domain.DateInterval) domain.DateInterval {
	w := c.tracker.Window(visible.Start)
	if end := domain.EndOfDay(visible.End); end.After(w.End) {
		w.End = end
	}
	return w
}

func (c *Cache) load(ctx context.Context, window domain.DateInterval, depot string, known map[domain.DayKey]domain.DayFingerprint) (*fetchResult, error) {
	if c.jobs == nil || c.engine == nil {
		return nil, errors.New("day summary cache: job source or engine is nil")
	}

	jobs, err := c.jobs.ListJobs(ctx, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	res := &fetchResult{
		window:  window,
		grouped: domain.GroupByDay(jobs),
		fresh:   make(map[domain.DayKey]entry),
	}

	var (
		routes []routing.DayRoute
		fps    = make(map[domain.DayKey]domain.DayFingerprint)
	)
	for _, day := range window.Days() {
		dayJobs := res.grouped[day]
		fp := domain.Fingerprint(dayJobs)
		if prev, ok := known[day]; ok && prev == fp {
			continue
		}
		if len(dayJobs) > 0 {
			if s := c.fromStore(ctx, depot, day, fp); s != nil {
				res.fresh[day] = entry{fingerprint: fp, summary: *s}
				continue
			}
		}
		route := routing.BuildRoute(string(day), day, dayJobs, depot)
		if !route.HasLegs() {
			res.fresh[day] = entry{fingerprint: fp, summary: route.ZeroSummary()}
			continue
		}
		fps[day] = fp
		routes = append(routes, route)
	}

	if len(routes) == 0 {
		return res, nil
	}

	results, err := c.engine.Summarize(ctx, routes)
	if err != nil {
		c.log.Warnf("summarize %d days: keeping previous summaries: %v", len(routes), err)
		for _, r := range routes {
			res.failed = append(res.failed, r.Day)
		}
		c.rec.ProviderFailures(len(res.failed))
		return res, nil
	}

	for _, r := range results {
		if r.Err != nil {
			c.log.Warnf("day %s: keeping previous summary: %v", r.Day, r.Err)
			res.failed = append(res.failed, r.Day)
			continue
		}
		fp := fps[r.Day]
		res.fresh[r.Day] = entry{fingerprint: fp, summary: *r.Summary}
		if len(res.grouped[r.Day]) > 0 {
			c.toStore(ctx, depot, r.Day, fp, *r.Summary)
		}
	}
	if len(res.failed) > 0 {
		c.rec.ProviderFailures(len(res.failed))
	}
	return res, nil
}

// apply runs under mu. Failed days keep their previous summary but are left
// uncovered so the next covering fetch retries them.
func (c *Cache) apply(res *fetchResult) {
	for _, day := range res.window.Days() {
		if jobs := res.grouped[day]; len(jobs) > 0 {
			c.jobsByDay[day] = jobs
		} else {
			delete(c.jobsByDay, day)
		}
	}
	maps.Copy(c.entries, res.fresh)

	c.tracker.Add(res.window)
	for _, day := range res.failed {
		if iv, err := day.Interval(); err == nil {
			c.tracker.Remove(iv)
		}
	}
}

// SetDepot resets the cache when the depot address changes.
func (c *Cache) SetDepot(depot string) {
	depot = strings.TrimSpace(depot)

	c.mu.Lock()
	defer c.mu.Unlock()

	if depot == c.depot {
		return
	}
	c.depot = depot
	c.resetLocked("depot changed")
}

// NotifyJobs hands the cache the caller's current jobs for the visible
// window. When the jobs of any covered visible day differ from the ones the
// cache loaded, the cache is reset so the window is fetched again. Days not
// loaded yet are ignored. It reports whether a reset happened.
func (c *Cache) NotifyJobs(visible domain.DateInterval, jobs []domain.ScheduledJob) bool {
	if !visible.Valid() {
		return false
	}
	grouped := domain.GroupByDay(jobs)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	var have, got []domain.ScheduledJob
	for _, day := range visible.Days() {
		iv, err := day.Interval()
		if err != nil || !c.tracker.Covers(iv) {
			continue
		}
		have = append(have, c.jobsByDay[day]...)
		got = append(got, grouped[day]...)
	}
	if domain.SetFingerprint(have) == domain.SetFingerprint(got) {
		return false
	}
	c.resetLocked("job set changed")
	return true
}

// Reset clears coverage, jobs and summaries. In-flight fetches become stale.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked("requested")
}

func (c *Cache) resetLocked(reason string) {
	c.tracker.Reset()
	clear(c.jobsByDay)
	clear(c.entries)
	c.stopTimerLocked()
	c.latest++
	c.resolved = c.latest
	c.log.Debugf("reset: %s", reason)
}

// Lookup returns the summary for day if it was computed for fingerprint fp
// against depot. The session's own entries are checked before the shared store.
func (c *Cache) Lookup(ctx context.Context, depot string, day domain.DayKey, fp domain.DayFingerprint) (*domain.DaySummary, bool) {
	depot = strings.TrimSpace(depot)

	c.mu.Lock()
	if e, ok := c.entries[day]; ok && depot == c.depot && e.fingerprint == fp {
		s := e.summary
		c.mu.Unlock()
		c.rec.CacheLookup(true)
		return &s, true
	}
	c.mu.Unlock()

	if s := c.fromStore(ctx, depot, day, fp); s != nil {
		c.rec.CacheLookup(true)
		return s, true
	}
	c.rec.CacheLookup(false)
	return nil, false
}

// Put records a summary computed outside the window flow. It is kept in the
// session only when it was computed against the session's depot.
func (c *Cache) Put(ctx context.Context, depot string, day domain.DayKey, fp domain.DayFingerprint, summary domain.DaySummary) {
	depot = strings.TrimSpace(depot)

	c.mu.Lock()
	if depot == c.depot && !c.closed {
		c.entries[day] = entry{fingerprint: fp, summary: summary}
	}
	c.mu.Unlock()

	c.toStore(ctx, depot, day, fp, summary)
}

func (c *Cache) fromStore(ctx context.Context, depot string, day domain.DayKey, fp domain.DayFingerprint) *domain.DaySummary {
	if c.store == nil {
		return nil
	}
	s, err := c.store.Get(ctx, ports.SummaryKey{Depot: depot, Day: day, Fingerprint: fp})
	if err != nil {
		c.log.Warnf("summary store get day=%s: %v", day, err)
		return nil
	}
	return s
}

func (c *Cache) toStore(ctx context.Context, depot string, day domain.DayKey, fp domain.DayFingerprint, s domain.DaySummary) {
	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, ports.SummaryKey{Depot: depot, Day: day, Fingerprint: fp}, s); err != nil {
		c.log.Warnf("summary store put day=%s: %v", day, err)
	}
}

// Summary returns the cached summary for day.
func (c *Cache) Summary(day domain.DayKey) (domain.DaySummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[day]
	return e.summary, ok
}

// Summaries returns the cached summaries of the days in iv, in day order.
func (c *Cache) Summaries(iv domain.DateInterval) []domain.DaySummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.DaySummary, 0)
	for _, day := range iv.Days() {
		if e, ok := c.entries[day]; ok {
			out = append(out, e.summary)
		}
	}
	return out
}

// Jobs returns the jobs last loaded for day.
func (c *Cache) Jobs(day domain.DayKey) []domain.ScheduledJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.jobsByDay[day])
}

// Covers reports whether iv is covered without scheduling anything.
func (c *Cache) Covers(iv domain.DateInterval) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Covers(iv)
}

func (c *Cache) Covered() []domain.DateInterval {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Ranges()
}

func (c *Cache) Depot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depot
}

// Token is the latest issued request token.
func (c *Cache) Token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.timer != nil:
		return Debouncing
	case c.resolved < c.latest:
		return Fetching
	default:
		return Idle
	}
}

// Pending reports whether a fetch is scheduled or in flight.
func (c *Cache) Pending() bool {
	return c.State() != Idle
}

// Close stops the debounce timer and cancels the context of timer-driven fetches.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.resolved = c.latest
	c.cancel()
}
