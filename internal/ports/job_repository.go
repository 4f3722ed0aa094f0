package ports

import (
	"context"
	"time"

	"drive-time-scheduler/internal/domain"
)

// Port: read access to persisted jobs.
type JobRepository interface {
	// Return every job whose start lies in [from, to], ordered by start.
	ListJobs(ctx context.Context, from, to time.Time) ([]domain.ScheduledJob, error)
}
