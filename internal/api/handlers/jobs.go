package handlers

import (
	"net/http"
	"slices"

	"drive-time-scheduler/internal/api/dto"
	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/ports"
)

const maxJobRangeDays = 366

// JobHandler exposes read-only job snapshots grouped by day.
type JobHandler struct {
	Repo ports.JobRepository
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	iv, ok := parseDayRange(w, r)
	if !ok {
		return
	}

	jobs, err := h.Repo.ListJobs(r.Context(), iv.Start, iv.End)
	if err != nil {
		writeServiceError(w, r, "list jobs", err)
		return
	}

	grouped := domain.GroupByDay(jobs)
	days := make([]domain.DayKey, 0, len(grouped))
	for d := range grouped {
		days = append(days, d)
	}
	slices.Sort(days)

	res := dto.ListJobsResponse{Days: make([]dto.DayJobsResponse, 0, len(days))}
	for _, d := range days {
		day := dto.DayJobsResponse{
			Day:         string(d),
			Fingerprint: string(domain.Fingerprint(grouped[d])),
			Jobs:        make([]dto.JobResponse, 0, len(grouped[d])),
		}
		for _, j := range grouped[d] {
			day.Jobs = append(day.Jobs, toJobResponse(j))
		}
		res.Days = append(res.Days, day)
	}

	writeJSON(w, r, http.StatusOK, res)
}

// parseDayRange reads from/to as YYYY-MM-DD and spans whole UTC days.
func parseDayRange(w http.ResponseWriter, r *http.Request) (domain.DateInterval, bool) {
	q := r.URL.Query()
	from, err := domain.ParseDayKey(q.Get("from"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return domain.DateInterval{}, false
	}
	to, err := domain.ParseDayKey(q.Get("to"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return domain.DateInterval{}, false
	}

	start, _ := from.Date()
	end, _ := to.Date()
	iv := domain.DateInterval{Start: start, End: domain.EndOfDay(end)}
	if !iv.Valid() {
		writeError(w, r, http.StatusBadRequest, "from must not be after to")
		return domain.DateInterval{}, false
	}
	if len(iv.Days()) > maxJobRangeDays {
		writeError(w, r, http.StatusBadRequest, "range must not exceed 366 days")
		return domain.DateInterval{}, false
	}
	return iv, true
}
