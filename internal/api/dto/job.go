package dto

import "time"

type JobResponse struct {
	JobID           string    `json:"job_id"`
	Title           string    `json:"title"`
	Location        string    `json:"location"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	TechnicianIDs   []string  `json:"technician_ids"`
	Confirmed       bool      `json:"confirmed"`
	DeadRun         bool      `json:"dead_run"`
}

type DayJobsResponse struct {
	Day         string        `json:"day"`
	Fingerprint string        `json:"fingerprint"`
	Jobs        []JobResponse `json:"jobs"`
}

type ListJobsResponse struct {
	Days []DayJobsResponse `json:"days"`
}
