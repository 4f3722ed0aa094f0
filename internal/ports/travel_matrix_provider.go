package ports

import (
	"context"

	"drive-time-scheduler/internal/domain"
)

// DayRouteRequest asks for the travel summary of one ordered stop list.
// Key is an opaque caller tag that lets one batch carry several routes for the same day.
type DayRouteRequest struct {
	Key   string
	Day   domain.DayKey
	Stops []domain.RouteStop
	Depot string
}

// DayRouteResult answers the request at the same index.
// Exactly one of Summary and Err is set.
type DayRouteResult struct {
	Key     string
	Day     domain.DayKey
	Summary *domain.DaySummary
	Err     error
}

// TravelMatrixProvider turns stop lists into per-leg travel data.
//
// Results are independent: a failed day does not fail the batch. The returned
// error is reserved for the batch as a whole being unreachable.
type TravelMatrixProvider interface {
	SummarizeRoutes(ctx context.Context, reqs []DayRouteRequest) ([]DayRouteResult, error)
}
