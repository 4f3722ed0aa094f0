package ports

import "context"

// DistanceResult is the road distance and typical drive time of one leg.
type DistanceResult struct {
	DistanceMeters  int
	DurationSeconds int
}

// Minutes returns the drive time in fractional minutes.
func (r DistanceResult) Minutes() float64 { return float64(r.DurationSeconds) / 60 }

// Kilometers returns the distance in kilometres.
func (r DistanceResult) Kilometers() float64 { return float64(r.DistanceMeters) / 1000 }

// DistanceProvider looks up a single origin -> destination leg.
type DistanceProvider interface {
	GetDistance(ctx context.Context, origin string, destination string) (DistanceResult, error)
}
