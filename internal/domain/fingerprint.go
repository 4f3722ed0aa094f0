package domain

import (
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DayFingerprint summarizes a day's job set for change detection only.
// Equal fingerprints mean a cached DaySummary for that day is still valid.
type DayFingerprint string

// EmptyFingerprint is the fingerprint of a day without jobs.
var EmptyFingerprint = Fingerprint(nil)

// Fingerprint hashes (id, start, duration, location, title) of every job after
// sorting them by start then id, so input order does not matter.
func Fingerprint(jobs []ScheduledJob) DayFingerprint {
	sorted := slices.Clone(jobs)
	SortJobs(sorted)

	d := xxhash.New()
	for _, j := range sorted {
		_, _ = d.WriteString(j.ID)
		_, _ = d.WriteString("\x1f")
		_, _ = d.WriteString(strconv.FormatInt(j.Start.UTC().UnixMilli(), 10))
		_, _ = d.WriteString("\x1f")
		_, _ = d.WriteString(strconv.Itoa(j.DurationMinutes))
		_, _ = d.WriteString("\x1f")
		_, _ = d.WriteString(NormalizeLocation(j.Location))
		_, _ = d.WriteString("\x1f")
		_, _ = d.WriteString(j.Title)
		_, _ = d.WriteString("\x1e")
	}
	return DayFingerprint(strconv.FormatUint(d.Sum64(), 16))
}

// SetFingerprint folds the per-day fingerprints of all jobs into one value.
func SetFingerprint(jobs []ScheduledJob) DayFingerprint {
	grouped := GroupByDay(jobs)
	days := make([]DayKey, 0, len(grouped))
	for k := range grouped {
		days = append(days, k)
	}
	slices.Sort(days)

	d := xxhash.New()
	for _, k := range days {
		_, _ = d.WriteString(string(k))
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(string(Fingerprint(grouped[k])))
		_, _ = d.WriteString(";")
	}
	return DayFingerprint(strconv.FormatUint(d.Sum64(), 16))
}
