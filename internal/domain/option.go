package domain

// TravelAmount pairs travel minutes with kilometres.
type TravelAmount struct {
	Minutes float64
	Km      float64
}

func (a TravelAmount) Sub(b TravelAmount) TravelAmount {
	return TravelAmount{Minutes: a.Minutes - b.Minutes, Km: a.Km - b.Km}
}

// DaySchedulingOption is one ranked day for a candidate job.
// ArrivalDelayMinutes is nil when inserting the candidate delays no later stop.
type DaySchedulingOption struct {
	Day                 DayKey
	ExistingJobCount    int
	Baseline            TravelAmount
	Projected           TravelAmount
	Extra               TravelAmount
	ArrivalDelayMinutes *int
	Feasible            bool
	Segments            []TravelSegment
	IsPartial           bool
}
