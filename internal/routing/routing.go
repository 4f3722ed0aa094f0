// Package routing builds the ordered stop lists of a technician day and
// turns them into travel summaries through a TravelMatrixProvider.
package routing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/ports"
)

// DayRoute is a day's job sequence and the stop list derived from it.
type DayRoute struct {
	Key     string
	Day     domain.DayKey
	Jobs    []domain.ScheduledJob
	Stops   []domain.RouteStop
	Depot   string
	Partial bool
}

// InsertCandidate returns a new chronological sequence containing jobs and the
// candidate. Existing jobs keep their relative order; on equal start times the
// candidate goes after the jobs already booked at that time.
func InsertCandidate(jobs []domain.ScheduledJob, candidate domain.CandidateJob) []domain.ScheduledJob {
	out := make([]domain.ScheduledJob, 0, len(jobs)+1)
	out = append(out, jobs...)
	out = append(out, candidate.AsScheduled())
	slices.SortStableFunc(out, func(a, b domain.ScheduledJob) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// BuildRoute lays out depot -> job1 -> ... -> jobN -> depot. Without a depot
// the chain runs job to job and the route is partial. A day with no jobs has
// no stops at all.
func BuildRoute(key string, day domain.DayKey, jobs []domain.ScheduledJob, depot string) DayRoute {
	depot = strings.TrimSpace(depot)
	r := DayRoute{
		Key:     key,
		Day:     day,
		Jobs:    jobs,
		Depot:   depot,
		Partial: depot == "",
	}
	if len(jobs) == 0 {
		r.Stops = []domain.RouteStop{}
		return r
	}

	stops := make([]domain.RouteStop, 0, len(jobs)+2)
	if depot != "" {
		stops = append(stops, depotStop(depot))
	}
	for _, j := range jobs {
		label := j.Title
		if label == "" {
			label = j.Location
		}
		stops = append(stops, domain.RouteStop{
			Label:    label,
			Kind:     domain.StopJob,
			JobID:    j.ID,
			Location: j.Location,
		})
	}
	if depot != "" {
		stops = append(stops, depotStop(depot))
	}
	r.Stops = stops
	return r
}

func depotStop(depot string) domain.RouteStop {
	return domain.RouteStop{Label: domain.DepotLabel, Kind: domain.StopDepot, Location: depot}
}

// Request converts the route into a provider request.
func (r DayRoute) Request() ports.DayRouteRequest {
	return ports.DayRouteRequest{Key: r.Key, Day: r.Day, Stops: r.Stops, Depot: r.Depot}
}

// HasLegs reports whether the route needs the travel provider at all.
func (r DayRoute) HasLegs() bool { return len(r.Stops) >= 2 }

// ZeroSummary is the summary of a route without legs.
func (r DayRoute) ZeroSummary() domain.DaySummary {
	return domain.NewDaySummary(r.Day, []domain.TravelSegment{}, r.Partial)
}

// Engine asks the travel provider for summaries of day routes.
// It never computes travel times itself.
type Engine struct {
	provider ports.TravelMatrixProvider
}

func NewEngine(provider ports.TravelMatrixProvider) *Engine {
	return &Engine{provider: provider}
}

// Summarize sends every route in one batch. The returned slice is aligned with
// routes; failed entries carry Err. Routes without legs are answered locally
// with an all-zero summary. A non-nil error means nothing could be computed.
func (e *Engine) Summarize(ctx context.Context, routes []DayRoute) ([]ports.DayRouteResult, error) {
	if e == nil || e.provider == nil {
		return nil, errors.New("summarize routes: travel provider is nil")
	}

	out := make([]ports.DayRouteResult, len(routes))
	reqs := make([]ports.DayRouteRequest, 0, len(routes))
	idx := make([]int, 0, len(routes))

	for i, r := range routes {
		if !r.HasLegs() {
			s := r.ZeroSummary()
			out[i] = ports.DayRouteResult{Key: r.Key, Day: r.Day, Summary: &s}
			continue
		}
		reqs = append(reqs, r.Request())
		idx = append(idx, i)
	}

	if len(reqs) == 0 {
		return out, nil
	}

	results, err := e.provider.SummarizeRoutes(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("summarize routes: %w", err)
	}
	if len(results) != len(reqs) {
		return nil, fmt.Errorf("summarize routes: provider returned %d results for %d requests", len(results), len(reqs))
	}

	for n, res := range results {
		i := idx[n]
		r := routes[i]
		res.Key, res.Day = r.Key, r.Day
		if res.Err == nil && res.Summary == nil {
			res.Err = fmt.Errorf("summarize routes: empty result for day %s", r.Day)
		}
		if res.Summary != nil {
			// The route, not the provider, decides whether the depot legs are missing.
			s := *res.Summary
			s.Day = r.Day
			s.IsPartial = s.IsPartial || r.Partial
			res.Summary = &s
		}
		out[i] = res
	}
	return out, nil
}
