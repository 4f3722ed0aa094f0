package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/platform/logger"
	"drive-time-scheduler/internal/platform/metrics"
	"drive-time-scheduler/internal/platform/obs"
	"drive-time-scheduler/internal/ports"
	"drive-time-scheduler/internal/routing"
)

var (
	// ErrProviderUnavailable means no eligible day could be summarized.
	ErrProviderUnavailable = errors.New("travel provider unavailable")
	ErrInvalidRequest      = errors.New("invalid ranking request")
)

const (
	DefaultDurationMinutes = 60
	MaxDurationMinutes     = 1440
)

// DefaultNonWorkingWeekdays is used when neither the request nor the
// optimizer configures a set.
var DefaultNonWorkingWeekdays = []time.Weekday{time.Friday, time.Saturday}

// BaselineCache serves and keeps day summaries keyed by depot, day and
// fingerprint. *daycache.Cache implements it.
type BaselineCache interface {
	Lookup(ctx context.Context, depot string, day domain.DayKey, fp domain.DayFingerprint) (*domain.DaySummary, bool)
	Put(ctx context.Context, depot string, day domain.DayKey, fp domain.DayFingerprint, summary domain.DaySummary)
}

// RankRequest describes a candidate job and the month to place it in.
// Jobs are the persisted jobs of that month. Session, when set, is consulted
// for baselines before the shared store.
type RankRequest struct {
	Title              string
	Location           string
	Year               int
	Month              time.Month
	StartHour          int
	StartMinute        int
	DurationMinutes    int
	Depot              string
	NonWorkingWeekdays []time.Weekday
	Today              time.Time
	Jobs               []domain.ScheduledJob
	Session            BaselineCache
}

// RankResult partitions the ranked days. Best is the first optimal day.
type RankResult struct {
	Optimal     []domain.DaySchedulingOption
	LateArrival []domain.DaySchedulingOption
	Best        *domain.DaySchedulingOption
	Partial     bool
	Omitted     []domain.DayKey
}

type OptimizerOptions struct {
	Store                  ports.DaySummaryStore
	Log                    logger.Logger
	Metrics                metrics.Recorder
	NonWorkingWeekdays     []time.Weekday
	DefaultDurationMinutes int
}

// Optimizer ranks the days of a month for a candidate job by the extra
// travel it causes and the delay it pushes onto later stops.
type Optimizer struct {
	engine          *routing.Engine
	store           BaselineCache
	log             logger.Logger
	rec             metrics.Recorder
	nonWorking      []time.Weekday
	defaultDuration int
}

func NewOptimizer(engine *routing.Engine, opts OptimizerOptions) *Optimizer {
	o := &Optimizer{
		engine:          engine,
		log:             logger.OrNop(opts.Log),
		rec:             metrics.OrNop(opts.Metrics),
		nonWorking:      opts.NonWorkingWeekdays,
		defaultDuration: opts.DefaultDurationMinutes,
	}
	if o.nonWorking == nil {
		o.nonWorking = DefaultNonWorkingWeekdays
	}
	if o.defaultDuration < 1 || o.defaultDuration > MaxDurationMinutes {
		o.defaultDuration = DefaultDurationMinutes
	}
	if opts.Store != nil {
		o.store = &storeCache{store: opts.Store, log: o.log, rec: o.rec}
	}
	return o
}

type dayPlan struct {
	day       domain.DayKey
	jobs      []domain.ScheduledJob
	projected []domain.ScheduledJob
	fp        domain.DayFingerprint
	baseline  *domain.DaySummary
	computed  bool
}

// Rank evaluates every eligible day of the month in one provider round-trip.
// Days whose summaries fail are omitted; if every day fails the run fails
// with ErrProviderUnavailable. A month without eligible days is not an error.
func (o *Optimizer) Rank(ctx context.Context, req RankRequest) (_ *RankResult, err error) {
	defer obs.Time(ctx, o.log, "optimizer.Rank")(&err)
	started := time.Now()

	if err := o.validate(&req); err != nil {
		return nil, err
	}
	depot := strings.TrimSpace(req.Depot)
	duration := req.DurationMinutes
	if duration < 1 || duration > MaxDurationMinutes {
		duration = o.defaultDuration
	}
	nonWorking := req.NonWorkingWeekdays
	if nonWorking == nil {
		nonWorking = o.nonWorking
	}

	result := &RankResult{
		Optimal:     []domain.DaySchedulingOption{},
		LateArrival: []domain.DaySchedulingOption{},
		Partial:     depot == "",
		Omitted:     []domain.DayKey{},
	}

	days := EligibleDays(req.Year, req.Month, req.Today, nonWorking)
	if len(days) == 0 {
		o.log.Infof("no eligible days in %d-%02d", req.Year, int(req.Month))
		return result, nil
	}

	grouped := domain.GroupByDay(req.Jobs)
	caches := o.caches(req.Session)

	plans := make([]*dayPlan, 0, len(days))
	routes := make([]routing.DayRoute, 0, 2*len(days))
	for _, d := range days {
		day := domain.DayKeyOf(d)
		p := &dayPlan{day: day, jobs: grouped[day], fp: domain.Fingerprint(grouped[day])}

		candidate := domain.CandidateJob{
			Title:           req.Title,
			Location:        req.Location,
			PreferredStart:  time.Date(d.Year(), d.Month(), d.Day(), req.StartHour, req.StartMinute, 0, 0, time.UTC),
			DurationMinutes: duration,
		}
		p.projected = routing.InsertCandidate(p.jobs, candidate)

		if len(p.jobs) == 0 {
			zero := domain.NewDaySummary(day, []domain.TravelSegment{}, depot == "")
			p.baseline = &zero
		} else if s := lookup(ctx, caches, depot, day, p.fp); s != nil {
			p.baseline = s
		} else {
			p.computed = true
			routes = append(routes, routing.BuildRoute(baselineKey(day), day, p.jobs, depot))
		}
		routes = append(routes, routing.BuildRoute(projectedKey(day), day, p.projected, depot))
		plans = append(plans, p)
	}

	results, err := o.engine.Summarize(ctx, routes)
	if err != nil {
		return nil, fmt.Errorf("rank %d-%02d: %w: %w", req.Year, int(req.Month), ErrProviderUnavailable, err)
	}
	byKey := make(map[string]ports.DayRouteResult, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}

	failures := 0
	for _, p := range plans {
		if p.computed {
			r := byKey[baselineKey(p.day)]
			if r.Err != nil || r.Summary == nil {
				o.log.Warnf("day %s: baseline failed: %v", p.day, r.Err)
				result.Omitted = append(result.Omitted, p.day)
				failures++
				continue
			}
			p.baseline = r.Summary
			for _, c := range caches {
				c.Put(ctx, depot, p.day, p.fp, *r.Summary)
			}
		}

		r := byKey[projectedKey(p.day)]
		if r.Err != nil || r.Summary == nil {
			o.log.Warnf("day %s: projection failed: %v", p.day, r.Err)
			result.Omitted = append(result.Omitted, p.day)
			failures++
			continue
		}

		opt := buildOption(p, *r.Summary)
		if opt.Feasible {
			result.Optimal = append(result.Optimal, opt)
		} else {
			result.LateArrival = append(result.LateArrival, opt)
		}
	}

	if failures > 0 {
		o.rec.ProviderFailures(failures)
	}
	if failures == len(plans) {
		return nil, fmt.Errorf("rank %d-%02d: all %d days failed: %w", req.Year, int(req.Month), failures, ErrProviderUnavailable)
	}

	slices.SortStableFunc(result.Optimal, compareOptions)
	slices.SortStableFunc(result.LateArrival, compareOptions)
	if len(result.Optimal) > 0 {
		best := result.Optimal[0]
		result.Best = &best
	}

	o.rec.RankCompleted(len(result.Optimal), len(result.LateArrival), time.Since(started))
	o.log.Infof("ranked %d-%02d: optimal=%d late=%d omitted=%d partial=%t",
		req.Year, int(req.Month), len(result.Optimal), len(result.LateArrival), len(result.Omitted), result.Partial)
	return result, nil
}

func (o *Optimizer) validate(req *RankRequest) error {
	req.Location = strings.TrimSpace(req.Location)
	switch {
	case o.engine == nil:
		return errors.New("rank: optimizer has no routing engine")
	case req.Location == "":
		return fmt.Errorf("%w: location is required", ErrInvalidRequest)
	case req.Month < time.January || req.Month > time.December:
		return fmt.Errorf("%w: month %d out of range", ErrInvalidRequest, int(req.Month))
	case req.Year < 1:
		return fmt.Errorf("%w: year %d out of range", ErrInvalidRequest, req.Year)
	case req.StartHour < 0 || req.StartHour > 23 || req.StartMinute < 0 || req.StartMinute > 59:
		return fmt.Errorf("%w: start %02d:%02d is not a time of day", ErrInvalidRequest, req.StartHour, req.StartMinute)
	}
	for _, wd := range req.NonWorkingWeekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRequest, int(wd))
		}
	}
	if req.Today.IsZero() {
		req.Today = time.Now()
	}
	return nil
}

func (o *Optimizer) caches(session BaselineCache) []BaselineCache {
	out := make([]BaselineCache, 0, 2)
	if session != nil {
		out = append(out, session)
	} else if o.store != nil {
		out = append(out, o.store)
	}
	return out
}

func lookup(ctx context.Context, caches []BaselineCache, depot string, day domain.DayKey, fp domain.DayFingerprint) *domain.DaySummary {
	for _, c := range caches {
		if s, ok := c.Lookup(ctx, depot, day, fp); ok {
			return s
		}
	}
	return nil
}

func baselineKey(day domain.DayKey) string  { return "baseline:" + string(day) }
func projectedKey(day domain.DayKey) string { return "projected:" + string(day) }

// EligibleDays lists the days of the month on or after today's UTC date whose
// weekday is not excluded.
func EligibleDays(year int, month time.Month, today time.Time, nonWorking []time.Weekday) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	floor := domain.StartOfDay(today)

	var days []time.Time
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		if d.Before(floor) || slices.Contains(nonWorking, d.Weekday()) {
			continue
		}
		days = append(days, d)
	}
	return days
}

func buildOption(p *dayPlan, projected domain.DaySummary) domain.DaySchedulingOption {
	baseline := *p.baseline
	delay := ArrivalDelay(p.jobs, baseline, p.projected, projected)
	return domain.DaySchedulingOption{
		Day:                 p.day,
		ExistingJobCount:    len(p.jobs),
		Baseline:            baseline.Travel(),
		Projected:           projected.Travel(),
		Extra:               projected.Travel().Sub(baseline.Travel()),
		ArrivalDelayMinutes: delay,
		Feasible:            delay == nil,
		Segments:            projected.Segments,
		IsPartial:           projected.IsPartial,
	}
}

func compareOptions(a, b domain.DaySchedulingOption) int {
	if a.Projected.Minutes != b.Projected.Minutes {
		if a.Projected.Minutes < b.Projected.Minutes {
			return -1
		}
		return 1
	}
	if a.ExistingJobCount != b.ExistingJobCount {
		return a.ExistingJobCount - b.ExistingJobCount
	}
	return strings.Compare(string(a.Day), string(b.Day))
}

// ArrivalDelay replays both sequences and returns, in whole minutes, the
// largest amount by which a job after the candidate starts later than it
// would without it. A job's service starts at the later of its scheduled
// start and the arrival from the previous job. Nil means no delay.
func ArrivalDelay(
	jobs []domain.ScheduledJob,
	baseline domain.DaySummary,
	projectedJobs []domain.ScheduledJob,
	projected domain.DaySummary,
) *int {
	before := serviceStarts(jobs, legMinutes(baseline))
	after := serviceStarts(projectedJobs, legMinutes(projected))

	worst := 0.0
	seenCandidate := false
	for _, j := range projectedJobs {
		if j.ID == domain.CandidateJobID {
			seenCandidate = true
			continue
		}
		if !seenCandidate {
			continue
		}
		if d := after[j.ID].Sub(before[j.ID]).Minutes(); d > worst {
			worst = d
		}
	}

	minutes := int(math.Round(worst))
	if minutes <= 0 {
		return nil
	}
	return &minutes
}

// legMinutes maps a job ID to the travel minutes of the leg arriving at it.
func legMinutes(s domain.DaySummary) map[string]float64 {
	m := make(map[string]float64, len(s.Segments))
	for _, seg := range s.Segments {
		if seg.ToKind == domain.StopJob && seg.ToJobID != "" {
			m[seg.ToJobID] = seg.TypicalMinutes
		}
	}
	return m
}

func serviceStarts(jobs []domain.ScheduledJob, legs map[string]float64) map[string]time.Time {
	starts := make(map[string]time.Time, len(jobs))
	var free time.Time
	for i, j := range jobs {
		start := j.Start
		if i > 0 {
			arrival := free.Add(time.Duration(legs[j.ID] * float64(time.Minute)))
			if arrival.After(start) {
				start = arrival
			}
		}
		starts[j.ID] = start
		free = start.Add(time.Duration(j.DurationMinutes) * time.Minute)
	}
	return starts
}

// storeCache adapts the shared summary store to BaselineCache.
type storeCache struct {
	store ports.DaySummaryStore
	log   logger.Logger
	rec   metrics.Recorder
}

func (c *storeCache) Lookup(ctx context.Context, depot string, day domain.DayKey, fp domain.DayFingerprint) (*domain.DaySummary, bool) {
	s, err := c.store.Get(ctx, ports.SummaryKey{Depot: depot, Day: day, Fingerprint: fp})
	if err != nil {
		c.log.Warnf("summary store get day=%s: %v", day, err)
	}
	c.rec.CacheLookup(s != nil)
	return s, s != nil
}

func (c *storeCache) Put(ctx context.Context, depot string, day domain.DayKey, fp domain.DayFingerprint, summary domain.DaySummary) {
	if err := c.store.Put(ctx, ports.SummaryKey{Depot: depot, Day: day, Fingerprint: fp}, summary); err != nil {
		c.log.Warnf("summary store put day=%s: %v", day, err)
	}
}
