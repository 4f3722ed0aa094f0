package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drive-time-scheduler/internal/api/handlers"
	"drive-time-scheduler/internal/daycache"
	"drive-time-scheduler/internal/platform/logger"
	"drive-time-scheduler/internal/ports"
	"drive-time-scheduler/internal/services"
)

// Deps are the collaborators of the HTTP API. A nil Gatherer serves the
// default Prometheus registry.
type Deps struct {
	Log          logger.Logger
	Jobs         ports.JobRepository
	Optimizer    *services.Optimizer
	Sessions     *daycache.Registry
	DefaultDepot string
	Gatherer     prometheus.Gatherer
	Now          func() time.Time
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	jobHandler := &handlers.JobHandler{Repo: d.Jobs}
	rankingHandler := &handlers.RankingHandler{
		Optimizer:    d.Optimizer,
		Repo:         d.Jobs,
		Sessions:     d.Sessions,
		DefaultDepot: d.DefaultDepot,
		Now:          d.Now,
	}
	calendarHandler := &handlers.CalendarHandler{
		Sessions:     d.Sessions,
		Jobs:         d.Jobs,
		DefaultDepot: d.DefaultDepot,
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/jobs", jobHandler.List)
	mux.HandleFunc("/rankings", rankingHandler.Rank)
	mux.HandleFunc("POST /calendar/sessions", calendarHandler.Create)
	mux.HandleFunc("PUT /calendar/sessions/{id}/window", calendarHandler.Window)
	mux.HandleFunc("GET /calendar/sessions/{id}/summaries", calendarHandler.Summaries)
	mux.HandleFunc("DELETE /calendar/sessions/{id}", calendarHandler.Close)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return loggingMiddleware(logger.OrNop(d.Log), mux)
}
