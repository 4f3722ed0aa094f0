package handlers

import (
	"net/http"
	"time"

	"drive-time-scheduler/internal/api/dto"
	"drive-time-scheduler/internal/daycache"
	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/ports"
)

// CalendarHandler drives one day summary cache per open calendar view.
type CalendarHandler struct {
	Sessions     *daycache.Registry
	Jobs         ports.JobRepository
	DefaultDepot string
}

func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, c := h.Sessions.Create()
	c.SetDepot(h.DefaultDepot)
	writeJSON(w, r, http.StatusCreated, dto.CreateSessionResponse{SessionID: id})
}

// Window reports a visible-window change. The window's current jobs are
// handed to the session first so edited days are fetched again; uncovered
// windows are fetched in the background after the debounce delay.
func (h *CalendarHandler) Window(w http.ResponseWriter, r *http.Request) {
	c, err := h.Sessions.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "observe window", err)
		return
	}

	var req dto.WindowRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "start must be RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "end must be RFC 3339")
		return
	}
	iv := domain.NewDateInterval(start, end)
	if !iv.Valid() {
		writeError(w, r, http.StatusBadRequest, "start must not be after end")
		return
	}

	if req.DepotAddress != nil {
		c.SetDepot(*req.DepotAddress)
	}
	if h.Jobs != nil {
		jobs, err := h.Jobs.ListJobs(r.Context(), domain.StartOfDay(iv.Start), domain.EndOfDay(iv.End))
		if err != nil {
			writeServiceError(w, r, "list window jobs", err)
			return
		}
		c.NotifyJobs(iv, jobs)
	}
	covered := c.ObserveWindow(iv)
	state := c.State()

	writeJSON(w, r, http.StatusAccepted, dto.WindowResponse{
		Covered: covered,
		Pending: state != daycache.Idle,
		State:   state.String(),
	})
}

func (h *CalendarHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	c, err := h.Sessions.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "list summaries", err)
		return
	}

	iv, ok := parseDayRange(w, r)
	if !ok {
		return
	}

	summaries := c.Summaries(iv)
	res := dto.SummariesResponse{
		Summaries: make([]dto.DaySummaryResponse, 0, len(summaries)),
		Covered:   c.Covers(iv),
		Pending:   c.Pending(),
	}
	for _, s := range summaries {
		res.Summaries = append(res.Summaries, toSummaryResponse(s))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *CalendarHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Close(r.PathValue("id")); err != nil {
		writeServiceError(w, r, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
