package handlers

import (
	"net/http"
	"strings"
	"time"

	"drive-time-scheduler/internal/api/dto"
	"drive-time-scheduler/internal/daycache"
	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/ports"
	"drive-time-scheduler/internal/services"
)

// RankingHandler ranks the days of a month for a candidate job.
type RankingHandler struct {
	Optimizer    *services.Optimizer
	Repo         ports.JobRepository
	Sessions     *daycache.Registry
	DefaultDepot string
	Now          func() time.Time
}

func (h *RankingHandler) Rank(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodPost) {
		return
	}

	var req dto.RankingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Month < 1 || req.Month > 12 {
		writeError(w, r, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	today := h.now()
	if req.Today != "" {
		d, err := domain.ParseDayKey(req.Today)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "today must be YYYY-MM-DD")
			return
		}
		today, _ = d.Date()
	}

	depot := h.DefaultDepot
	if req.DepotAddress != nil {
		depot = *req.DepotAddress
	}

	var weekdays []time.Weekday
	if req.NonWorkingWeekdays != nil {
		weekdays = make([]time.Weekday, 0, len(*req.NonWorkingWeekdays))
		for _, d := range *req.NonWorkingWeekdays {
			weekdays = append(weekdays, time.Weekday(d))
		}
	}

	svcReq := services.RankRequest{
		Title:              strings.TrimSpace(req.Title),
		Location:           req.Location,
		Year:               req.Year,
		Month:              time.Month(req.Month),
		StartHour:          req.StartHour,
		StartMinute:        req.StartMinute,
		DurationMinutes:    req.DurationMinutes,
		Depot:              depot,
		NonWorkingWeekdays: weekdays,
		Today:              today,
	}

	if req.SessionID != "" {
		session, err := h.Sessions.Get(req.SessionID)
		if err != nil {
			writeServiceError(w, r, "rank", err)
			return
		}
		svcReq.Session = session
	}

	first := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, time.UTC)
	jobs, err := h.Repo.ListJobs(r.Context(), first, domain.EndOfDay(first.AddDate(0, 1, -1)))
	if err != nil {
		writeServiceError(w, r, "rank: list jobs", err)
		return
	}
	svcReq.Jobs = jobs

	result, err := h.Optimizer.Rank(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, r, "rank", err)
		return
	}

	res := dto.RankingResponse{
		Optimal:     toOptions(result.Optimal),
		LateArrival: toOptions(result.LateArrival),
		Partial:     result.Partial,
		OmittedDays: make([]string, 0, len(result.Omitted)),
	}
	if result.Best != nil {
		best := toOptionResponse(*result.Best)
		res.Best = &best
	}
	for _, d := range result.Omitted {
		res.OmittedDays = append(res.OmittedDays, string(d))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *RankingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
