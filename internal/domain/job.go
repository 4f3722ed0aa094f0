package domain

import (
	"slices"
	"strings"
	"time"
)

// CandidateJobID is the reserved identifier the candidate job carries inside
// hypothetical routes. Persisted jobs never use it.
const CandidateJobID = "__candidate__"

// ScheduledJob is a read-only snapshot of a persisted job.
type ScheduledJob struct {
	ID              string
	Title           string
	Location        string
	Start           time.Time
	DurationMinutes int
	TechnicianIDs   []string
	Confirmed       bool
	DeadRun         bool
}

func (j ScheduledJob) DayKey() DayKey { return DayKeyOf(j.Start) }

// End is the scheduled finish of the job.
func (j ScheduledJob) End() time.Time {
	return j.Start.Add(time.Duration(j.DurationMinutes) * time.Minute)
}

// CandidateJob is the job being placed by an optimization run. It is never persisted.
type CandidateJob struct {
	Title           string
	Location        string
	PreferredStart  time.Time
	DurationMinutes int
}

// AsScheduled returns the candidate as a job snapshot carrying CandidateJobID.
func (c CandidateJob) AsScheduled() ScheduledJob {
	return ScheduledJob{
		ID:              CandidateJobID,
		Title:           c.Title,
		Location:        c.Location,
		Start:           c.PreferredStart,
		DurationMinutes: c.DurationMinutes,
	}
}

// NormalizeLocation collapses whitespace so equal addresses compare equal.
func NormalizeLocation(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SortJobs orders jobs chronologically, breaking ties by ID.
func SortJobs(jobs []ScheduledJob) {
	slices.SortStableFunc(jobs, compareJobs)
}

func compareJobs(a, b ScheduledJob) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// GroupByDay buckets jobs by DayKey; each bucket is sorted with SortJobs.
func GroupByDay(jobs []ScheduledJob) map[DayKey][]ScheduledJob {
	grouped := make(map[DayKey][]ScheduledJob)
	for _, j := range jobs {
		k := j.DayKey()
		grouped[k] = append(grouped[k], j)
	}
	for _, day := range grouped {
		SortJobs(day)
	}
	return grouped
}
