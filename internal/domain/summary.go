package domain

// StopKind tells whether a route stop is the depot or a job.
type StopKind string

const (
	StopDepot StopKind = "depot"
	StopJob   StopKind = "job"
)

// DepotLabel is the label used for depot stops.
const DepotLabel = "Depot"

// RouteStop is one entry of the ordered stop list sent to the travel provider.
type RouteStop struct {
	Label    string
	Kind     StopKind
	JobID    string
	Location string
}

// TravelSegment is a single leg as returned by the travel provider.
type TravelSegment struct {
	FromLabel      string
	ToLabel        string
	FromKind       StopKind
	ToKind         StopKind
	FromJobID      string
	ToJobID        string
	TypicalMinutes float64
	Kilometers     float64
	// PathGeometry is optional; the matrix-based providers leave it empty.
	PathGeometry   []Coordinates
}

// DaySummary is the travel summary of one day's route.
// IsPartial is set when no depot was configured, so only job-to-job legs count.
// Summaries are replaced wholesale, never mutated.
type DaySummary struct {
	Day                DayKey
	TotalTravelMinutes float64
	TotalTravelKm      float64
	Segments           []TravelSegment
	IsPartial          bool
}

// NewDaySummary totals the segments.
func NewDaySummary(day DayKey, segments []TravelSegment, partial bool) DaySummary {
	s := DaySummary{Day: day, Segments: segments, IsPartial: partial}
	for _, seg := range segments {
		s.TotalTravelMinutes += seg.TypicalMinutes
		s.TotalTravelKm += seg.Kilometers
	}
	return s
}

// Travel returns the totals as a TravelAmount.
func (s DaySummary) Travel() TravelAmount {
	return TravelAmount{Minutes: s.TotalTravelMinutes, Km: s.TotalTravelKm}
}
