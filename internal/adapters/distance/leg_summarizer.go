package distance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/platform/logger"
	"drive-time-scheduler/internal/platform/obs"
	"drive-time-scheduler/internal/ports"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrAllLookupsFailed is returned when not a single leg of a batch could be resolved.
var ErrAllLookupsFailed = errors.New("travel provider unavailable: every leg lookup failed")

const defaultLookupConcurrency = 5

// LegSummarizer implements ports.TravelMatrixProvider on top of a leg-level
// DistanceProvider.
//
// All legs of a batch are deduplicated and grouped by origin; each origin is
// resolved once (one matrix row when the provider supports it). A failing
// origin only fails the days that need one of its legs.
type LegSummarizer struct {
	provider    ports.DistanceProvider
	log         logger.Logger
	concurrency int
	rows        singleflight.Group
}

func NewLegSummarizer(provider ports.DistanceProvider, log logger.Logger) *LegSummarizer {
	return &LegSummarizer{
		provider:    provider,
		log:         logger.OrNop(log),
		concurrency: defaultLookupConcurrency,
	}
}

type legKey struct{ from, to string }

type originRow struct {
	results map[string]ports.DistanceResult
	err     error
}

func (s *LegSummarizer) SummarizeRoutes(
	ctx context.Context,
	reqs []ports.DayRouteRequest,
) (_ []ports.DayRouteResult, err error) {
	defer obs.Time(ctx, s.log, "legs.SummarizeRoutes")(&err)

	if s.provider == nil {
		return nil, errors.New("summarize routes: distance provider is nil")
	}

	byOrigin := make(map[string][]string)
	seen := make(map[legKey]struct{})
	for _, r := range reqs {
		for i := 1; i < len(r.Stops); i++ {
			from := domain.NormalizeLocation(r.Stops[i-1].Location)
			to := domain.NormalizeLocation(r.Stops[i].Location)
			if from == "" || to == "" || from == to {
				continue
			}
			k := legKey{from, to}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			byOrigin[from] = append(byOrigin[from], to)
		}
	}

	rows := s.resolve(ctx, byOrigin)

	failedOrigins := 0
	for origin, row := range rows {
		if row.err != nil {
			failedOrigins++
			s.log.Warnf("leg lookup failed origin=%q err=%v", origin, row.err)
		}
	}
	if len(rows) > 0 && failedOrigins == len(rows) {
		var first error
		for _, row := range rows {
			first = row.err
			break
		}
		return nil, fmt.Errorf("%w: %w", ErrAllLookupsFailed, first)
	}

	out := make([]ports.DayRouteResult, len(reqs))
	for i, r := range reqs {
		summary, err := buildSummary(r, rows)
		if err != nil {
			out[i] = ports.DayRouteResult{Key: r.Key, Day: r.Day, Err: err}
			continue
		}
		out[i] = ports.DayRouteResult{Key: r.Key, Day: r.Day, Summary: &summary}
	}
	return out, nil
}

// resolve looks up every origin row concurrently, bounded by s.concurrency.
func (s *LegSummarizer) resolve(ctx context.Context, byOrigin map[string][]string) map[string]originRow {
	var (
		mu   sync.Mutex
		rows = make(map[string]originRow, len(byOrigin))
		g    errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for origin, dests := range byOrigin {
		slices.Sort(dests)
		g.Go(func() error {
			res, err := s.row(ctx, origin, dests)
			mu.Lock()
			rows[origin] = originRow{results: res, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return rows
}

// row fetches one origin -> many destinations. Identical concurrent rows
// (for example two calendar sessions on the same week) share one lookup.
// The shared lookup is detached from the first caller's cancellation; each
// caller still stops waiting when its own ctx ends.
func (s *LegSummarizer) row(ctx context.Context, origin string, dests []string) (map[string]ports.DistanceResult, error) {
	key := origin + "\x00" + strings.Join(dests, "\x00")
	shared := context.WithoutCancel(ctx)
	ch := s.rows.DoChan(key, func() (any, error) {
		if mp, ok := s.provider.(ports.DistanceMatrixProvider); ok {
			res, err := mp.GetDistances(shared, origin, dests)
			if err != nil {
				return nil, fmt.Errorf("get distances from %q: %w", origin, err)
			}
			return res, nil
		}

		res := make(map[string]ports.DistanceResult, len(dests))
		for _, d := range dests {
			r, err := s.provider.GetDistance(shared, origin, d)
			if err != nil {
				return nil, fmt.Errorf("get distance %q -> %q: %w", origin, d, err)
			}
			res[d] = r
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(map[string]ports.DistanceResult), nil
	}
}

func buildSummary(r ports.DayRouteRequest, rows map[string]originRow) (domain.DaySummary, error) {
	segments := make([]domain.TravelSegment, 0, max(len(r.Stops)-1, 0))
	for i := 1; i < len(r.Stops); i++ {
		from, to := r.Stops[i-1], r.Stops[i]
		seg := domain.TravelSegment{
			FromLabel: from.Label,
			ToLabel:   to.Label,
			FromKind:  from.Kind,
			ToKind:    to.Kind,
			FromJobID: from.JobID,
			ToJobID:   to.JobID,
		}

		fromLoc := domain.NormalizeLocation(from.Location)
		toLoc := domain.NormalizeLocation(to.Location)
		if fromLoc == "" || toLoc == "" {
			return domain.DaySummary{}, fmt.Errorf("day %s: leg %d has no address", r.Day, i)
		}
		if fromLoc != toLoc {
			row := rows[fromLoc]
			if row.err != nil {
				return domain.DaySummary{}, fmt.Errorf("day %s: %w", r.Day, row.err)
			}
			res, ok := row.results[toLoc]
			if !ok {
				return domain.DaySummary{}, fmt.Errorf("day %s: missing leg %q -> %q", r.Day, fromLoc, toLoc)
			}
			seg.TypicalMinutes = res.Minutes()
			seg.Kilometers = res.Kilometers()
		}
		segments = append(segments, seg)
	}

	return domain.NewDaySummary(r.Day, segments, strings.TrimSpace(r.Depot) == ""), nil
}
