package handlers

import (
	"drive-time-scheduler/internal/api/dto"
	"drive-time-scheduler/internal/domain"
)

func toJobResponse(j domain.ScheduledJob) dto.JobResponse {
	tech := j.TechnicianIDs
	if tech == nil {
		tech = []string{}
	}
	return dto.JobResponse{
		JobID:           j.ID,
		Title:           j.Title,
		Location:        j.Location,
		StartsAt:        j.Start,
		DurationMinutes: j.DurationMinutes,
		TechnicianIDs:   tech,
		Confirmed:       j.Confirmed,
		DeadRun:         j.DeadRun,
	}
}

func toSegments(segs []domain.TravelSegment) []dto.TravelSegmentResponse {
	out := make([]dto.TravelSegmentResponse, 0, len(segs))
	for _, s := range segs {
		var path [][]float64
		for _, c := range s.PathGeometry {
			path = append(path, c.LonLat())
		}
		out = append(out, dto.TravelSegmentResponse{
			FromLabel:      s.FromLabel,
			ToLabel:        s.ToLabel,
			FromKind:       string(s.FromKind),
			ToKind:         string(s.ToKind),
			FromJobID:      s.FromJobID,
			ToJobID:        s.ToJobID,
			TypicalMinutes: s.TypicalMinutes,
			Kilometers:     s.Kilometers,
			PathGeometry:   path,
		})
	}
	return out
}

func toSummaryResponse(s domain.DaySummary) dto.DaySummaryResponse {
	return dto.DaySummaryResponse{
		Day:                string(s.Day),
		TotalTravelMinutes: s.TotalTravelMinutes,
		TotalTravelKm:      s.TotalTravelKm,
		IsPartial:          s.IsPartial,
		Segments:           toSegments(s.Segments),
	}
}

func toAmount(a domain.TravelAmount) dto.TravelAmountResponse {
	return dto.TravelAmountResponse{Minutes: a.Minutes, Km: a.Km}
}

func toOptionResponse(o domain.DaySchedulingOption) dto.DayOptionResponse {
	return dto.DayOptionResponse{
		Day:                 string(o.Day),
		ExistingJobCount:    o.ExistingJobCount,
		Baseline:            toAmount(o.Baseline),
		Projected:           toAmount(o.Projected),
		Extra:               toAmount(o.Extra),
		ArrivalDelayMinutes: o.ArrivalDelayMinutes,
		Feasible:            o.Feasible,
		IsPartial:           o.IsPartial,
		Segments:            toSegments(o.Segments),
	}
}

func toOptions(opts []domain.DaySchedulingOption) []dto.DayOptionResponse {
	out := make([]dto.DayOptionResponse, 0, len(opts))
	for _, o := range opts {
		out = append(out, toOptionResponse(o))
	}
	return out
}
