// Package metrics records scheduler cache and ranking activity.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives scheduler events. Implementations must be safe for concurrent use.
type Recorder interface {
	CacheLookup(hit bool)
	FetchIssued()
	StaleResponse()
	ProviderFailures(n int)
	RankCompleted(optimal, late int, dur time.Duration)
}

// Nop ignores every event.
type Nop struct{}

func (Nop) CacheLookup(bool)                      {}
func (Nop) FetchIssued()                          {}
func (Nop) StaleResponse()                        {}
func (Nop) ProviderFailures(int)                  {}
func (Nop) RankCompleted(int, int, time.Duration) {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Prom records events in Prometheus collectors.
type Prom struct {
	lookups   *prometheus.CounterVec
	fetches   prometheus.Counter
	stale     prometheus.Counter
	failures  prometheus.Counter
	rankDur   prometheus.Histogram
	rankedOut *prometheus.CounterVec
}

// NewProm registers the scheduler collectors on reg. A nil reg means the
// default registerer. Collectors that are already registered are reused.
func NewProm(reg prometheus.Registerer) (*Prom, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prom{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_day_summary_lookups_total",
			Help: "Day summary cache lookups by outcome",
		}, []string{"hit"}),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_window_fetches_total",
			Help: "Calendar window fetches issued",
		}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_stale_responses_total",
			Help: "Fetch responses dropped because a newer request was issued",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_provider_day_failures_total",
			Help: "Days whose travel summary could not be computed",
		}),
		rankDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_rank_duration_seconds",
			Help:    "Duration of day ranking runs",
			Buckets: prometheus.DefBuckets,
		}),
		rankedOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_ranked_days_total",
			Help: "Ranked days by partition",
		}, []string{"partition"}),
	}

	var err error
	if p.lookups, err = register(reg, p.lookups); err != nil {
		return nil, err
	}
	if p.fetches, err = register(reg, p.fetches); err != nil {
		return nil, err
	}
	if p.stale, err = register(reg, p.stale); err != nil {
		return nil, err
	}
	if p.failures, err = register(reg, p.failures); err != nil {
		return nil, err
	}
	if p.rankDur, err = register(reg, p.rankDur); err != nil {
		return nil, err
	}
	if p.rankedOut, err = register(reg, p.rankedOut); err != nil {
		return nil, err
	}
	return p, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (p *Prom) CacheLookup(hit bool) {
	p.lookups.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

func (p *Prom) FetchIssued()   { p.fetches.Inc() }
func (p *Prom) StaleResponse() { p.stale.Inc() }

func (p *Prom) ProviderFailures(n int) {
	if n > 0 {
		p.failures.Add(float64(n))
	}
}

func (p *Prom) RankCompleted(optimal, late int, dur time.Duration) {
	p.rankDur.Observe(dur.Seconds())
	p.rankedOut.WithLabelValues("optimal").Add(float64(optimal))
	p.rankedOut.WithLabelValues("late_arrival").Add(float64(late))
}
