package dto

// RankingRequest asks for the best days of a month for a new job.
// Omitted depot_address and non_working_weekdays fall back to the service
// configuration; an explicit empty depot ranks without depot legs.
type RankingRequest struct {
	Title              string  `json:"title"`
	Location           string  `json:"location"`
	Year               int     `json:"year"`
	Month              int     `json:"month"`
	StartHour          int     `json:"start_hour"`
	StartMinute        int     `json:"start_minute"`
	DurationMinutes    int     `json:"duration_minutes"`
	DepotAddress       *string `json:"depot_address"`
	NonWorkingWeekdays *[]int  `json:"non_working_weekdays"`
	Today              string  `json:"today"`
	SessionID          string  `json:"session_id"`
}

type TravelAmountResponse struct {
	Minutes float64 `json:"minutes"`
	Km      float64 `json:"km"`
}

type DayOptionResponse struct {
	Day                 string                  `json:"day"`
	ExistingJobCount    int                     `json:"existing_job_count"`
	Baseline            TravelAmountResponse    `json:"baseline"`
	Projected           TravelAmountResponse    `json:"projected"`
	Extra               TravelAmountResponse    `json:"extra"`
	ArrivalDelayMinutes *int                    `json:"arrival_delay_minutes"`
	Feasible            bool                    `json:"feasible"`
	IsPartial           bool                    `json:"is_partial"`
	Segments            []TravelSegmentResponse `json:"segments"`
}

type RankingResponse struct {
	Optimal     []DayOptionResponse `json:"optimal"`
	LateArrival []DayOptionResponse `json:"late_arrival"`
	Best        *DayOptionResponse  `json:"best"`
	Partial     bool                `json:"partial"`
	OmittedDays []string            `json:"omitted_days"`
}
