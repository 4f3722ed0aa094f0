package dto

type TravelSegmentResponse struct {
	FromLabel      string       `json:"from_label"`
	ToLabel        string       `json:"to_label"`
	FromKind       string       `json:"from_kind"`
	ToKind         string       `json:"to_kind"`
	FromJobID      string       `json:"from_job_id,omitempty"`
	ToJobID        string       `json:"to_job_id,omitempty"`
	TypicalMinutes float64      `json:"typical_minutes"`
	Kilometers     float64      `json:"kilometers"`
	PathGeometry   [][]float64  `json:"path_geometry,omitempty"`
}

type DaySummaryResponse struct {
	Day                string                  `json:"day"`
	TotalTravelMinutes float64                 `json:"total_travel_minutes"`
	TotalTravelKm      float64                 `json:"total_travel_km"`
	IsPartial          bool                    `json:"is_partial"`
	Segments           []TravelSegmentResponse `json:"segments"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// WindowRequest reports the visible calendar window. A present depot_address
// replaces the session depot; an empty one clears it.
type WindowRequest struct {
	Start        string  `json:"start"`
	End          string  `json:"end"`
	DepotAddress *string `json:"depot_address"`
}

type WindowResponse struct {
	Covered bool   `json:"covered"`
	Pending bool   `json:"pending"`
	State   string `json:"state"`
}

type SummariesResponse struct {
	Summaries []DaySummaryResponse `json:"summaries"`
	Covered   bool                 `json:"covered"`
	Pending   bool                 `json:"pending"`
}
