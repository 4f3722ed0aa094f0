package ports

import (
	"context"

	"drive-time-scheduler/internal/domain"
)

// SummaryKey addresses a stored DaySummary. A summary is only reusable for the
// same depot and the same day fingerprint.
type SummaryKey struct {
	Depot       string
	Day         domain.DayKey
	Fingerprint domain.DayFingerprint
}

// DaySummaryStore is a shared second-level store for day summaries.
// Get returns (nil, nil) on a miss.
type DaySummaryStore interface {
	Get(ctx context.Context, key SummaryKey) (*domain.DaySummary, error)
	Put(ctx context.Context, key SummaryKey, summary domain.DaySummary) error
}
