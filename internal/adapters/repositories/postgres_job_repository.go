package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/platform/logger"
	"drive-time-scheduler/internal/platform/obs"
)

// Postgres-backed implementation of the JobRepository port.
type PostgresJobRepository struct {
	DB  *sql.DB
	Log logger.Logger
}

func NewPostgresJobRepository(db *sql.DB, log logger.Logger) *PostgresJobRepository {
	return &PostgresJobRepository{DB: db, Log: logger.OrNop(log)}
}

// ListJobs returns the jobs starting in [from, to], oldest first.
func (r *PostgresJobRepository) ListJobs(ctx context.Context, from, to time.Time) (_ []domain.ScheduledJob, err error) {
	defer obs.Time(ctx, r.Log, "jobs.ListJobs")(&err)

	if r.DB == nil {
		return nil, errors.New("postgres job repository: DB is nil")
	}
	if from.After(to) {
		return nil, fmt.Errorf("list jobs: from %s is after to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT
		job_id,
		title,
		location,
		starts_at,
		duration_minutes,
		technician_ids,
		confirmed,
		dead_run
	FROM jobs
	WHERE starts_at BETWEEN $1 AND $2
	ORDER BY starts_at, job_id;
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list jobs: query jobs table: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.ScheduledJob, 0, 64)
	for rows.Next() {
		var (
			j    domain.ScheduledJob
			tech []byte
		)
		if err := rows.Scan(&j.ID, &j.Title, &j.Location, &j.Start, &j.DurationMinutes, &tech, &j.Confirmed, &j.DeadRun); err != nil {
			return nil, fmt.Errorf("list jobs: scan row: %w", err)
		}
		if len(tech) > 0 {
			if err := json.Unmarshal(tech, &j.TechnicianIDs); err != nil {
				return nil, fmt.Errorf("list jobs: job_id=%s technician_ids: %w", j.ID, err)
			}
		}
		j.Start = j.Start.UTC()
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: row iteration: %w", err)
	}

	return jobs, nil
}
