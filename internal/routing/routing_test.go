package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(h, m int) time.Time {
	return time.Date(2026, 6, 3, h, m, 0, 0, time.UTC)
}

type fakeProvider struct {
	calls [][]ports.DayRouteRequest
	fail  map[string]error
	err   error
}

func (f *fakeProvider) SummarizeRoutes(ctx context.Context, reqs []ports.DayRouteRequest) ([]ports.DayRouteResult, error) {
	f.calls = append(f.calls, reqs)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ports.DayRouteResult, len(reqs))
	for i, r := range reqs {
		if err := f.fail[r.Key]; err != nil {
			out[i] = ports.DayRouteResult{Key: r.Key, Day: r.Day, Err: err}
			continue
		}
		segs := make([]domain.TravelSegment, 0, len(r.Stops)-1)
		for n := 1; n < len(r.Stops); n++ {
			segs = append(segs, domain.TravelSegment{TypicalMinutes: 10, Kilometers: 5})
		}
		s := domain.NewDaySummary(r.Day, segs, false)
		out[i] = ports.DayRouteResult{Key: r.Key, Day: r.Day, Summary: &s}
	}
	return out, nil
}

func TestInsertCandidateChronological(t *testing.T) {
	jobs := []domain.ScheduledJob{
		{ID: "a", Start: clock(9, 0)},
		{ID: "b", Start: clock(11, 0)},
		{ID: "c", Start: clock(14, 0)},
	}
	got := InsertCandidate(jobs, domain.CandidateJob{PreferredStart: clock(12, 30)})

	ids := make([]string, 0, len(got))
	for _, j := range got {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"a", "b", domain.CandidateJobID, "c"}, ids)
	assert.Len(t, jobs, 3, "input must not be modified")
}

func TestInsertCandidateTieGoesAfterExisting(t *testing.T) {
	// Two existing jobs share a start; their order must survive.
	jobs := []domain.ScheduledJob{
		{ID: "z", Start: clock(10, 0)},
		{ID: "y", Start: clock(10, 0)},
	}
	got := InsertCandidate(jobs, domain.CandidateJob{PreferredStart: clock(10, 0)})

	require.Len(t, got, 3)
	assert.Equal(t, "z", got[0].ID)
	assert.Equal(t, "y", got[1].ID)
	assert.Equal(t, domain.CandidateJobID, got[2].ID)
}

func TestBuildRouteWithDepot(t *testing.T) {
	jobs := []domain.ScheduledJob{
		{ID: "a", Title: "Boiler", Location: "1 Elm St", Start: clock(9, 0)},
		{ID: "b", Location: "2 Oak Ave", Start: clock(10, 0)},
	}
	r := BuildRoute("k", "2026-06-03", jobs, " 100 Depot Rd ")

	require.Len(t, r.Stops, 4)
	assert.False(t, r.Partial)
	assert.Equal(t, domain.StopDepot, r.Stops[0].Kind)
	assert.Equal(t, "100 Depot Rd", r.Stops[0].Location)
	assert.Equal(t, "Boiler", r.Stops[1].Label)
	assert.Equal(t, "2 Oak Ave", r.Stops[2].Label, "falls back to location when untitled")
	assert.Equal(t, domain.StopDepot, r.Stops[3].Kind)
}

func TestBuildRouteWithoutDepotIsPartial(t *testing.T) {
	jobs := []domain.ScheduledJob{{ID: "a", Start: clock(9, 0)}, {ID: "b", Start: clock(10, 0)}}
	r := BuildRoute("k", "2026-06-03", jobs, "")

	assert.True(t, r.Partial)
	require.Len(t, r.Stops, 2)
	assert.Equal(t, domain.StopJob, r.Stops[0].Kind)

	empty := BuildRoute("k", "2026-06-03", nil, "100 Depot Rd")
	assert.Empty(t, empty.Stops)
}

func TestEngineSummarizeBatchesAndAnswersEmptyRoutesLocally(t *testing.T) {
	p := &fakeProvider{fail: map[string]error{"bad": errors.New("upstream timeout")}}
	e := NewEngine(p)

	routes := []DayRoute{
		BuildRoute("empty", "2026-06-01", nil, "Depot"),
		BuildRoute("ok", "2026-06-02", []domain.ScheduledJob{{ID: "a"}}, "Depot"),
		BuildRoute("bad", "2026-06-03", []domain.ScheduledJob{{ID: "b"}}, ""),
		BuildRoute("single", "2026-06-04", []domain.ScheduledJob{{ID: "c"}}, ""),
	}

	res, err := e.Summarize(context.Background(), routes)
	require.NoError(t, err)
	require.Len(t, res, 4)
	require.Len(t, p.calls, 1, "one provider round-trip")
	assert.Len(t, p.calls[0], 2, "only routes with legs reach the provider")

	assert.Zero(t, res[0].Summary.TotalTravelMinutes)
	assert.InDelta(t, 20, res[1].Summary.TotalTravelMinutes, 1e-9)
	assert.Error(t, res[2].Err)
	assert.True(t, res[3].Summary.IsPartial)
	assert.Equal(t, domain.DayKey("2026-06-04"), res[3].Day)
}

func TestEngineSummarizeProviderDown(t *testing.T) {
	e := NewEngine(&fakeProvider{err: errors.New("connection refused")})
	_, err := e.Summarize(context.Background(), []DayRoute{
		BuildRoute("ok", "2026-06-02", []domain.ScheduledJob{{ID: "a"}}, "Depot"),
	})
	assert.Error(t, err)
}
