package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// InitSchema creates the jobs table and the travel caches.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			job_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL,
			starts_at TIMESTAMPTZ NOT NULL,
			duration_minutes INTEGER NOT NULL CHECK (duration_minutes BETWEEN 1 AND 1440),
			technician_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
			confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			dead_run BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_starts_at ON jobs(starts_at);`,
		`CREATE TABLE IF NOT EXISTS travel_leg_cache (
			origin TEXT NOT NULL,
			destination TEXT NOT NULL,
			distance_meters INTEGER NOT NULL,
			duration_seconds INTEGER NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (origin, destination)
		);`,
		`CREATE TABLE IF NOT EXISTS geocode_cache (
			address TEXT PRIMARY KEY,
			lon DOUBLE PRECISION NOT NULL,
			lat DOUBLE PRECISION NOT NULL
		);`,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}
	return nil
}

// JobSeed is the JSON shape of a seeded job.
type JobSeed struct {
	JobID           string    `json:"job_id"`
	Title           string    `json:"title"`
	Location        string    `json:"location"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	TechnicianIDs   []string  `json:"technician_ids"`
	Confirmed       bool      `json:"confirmed"`
	DeadRun         bool      `json:"dead_run"`
}

// SeedFromJSON upserts jobs from a JSON array file.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed jobs: read %q: %w", jsonPath, err)
	}

	var data []JobSeed
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("seed jobs: parse json: %w", err)
	}
	for i := range data {
		if err := data[i].validate(); err != nil {
			return fmt.Errorf("seed jobs: item %d: %w", i+1, err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed jobs: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO jobs (job_id, title, location, starts_at, duration_minutes, technician_ids, confirmed, dead_run)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (job_id) DO UPDATE
	SET title = EXCLUDED.title,
		location = EXCLUDED.location,
		starts_at = EXCLUDED.starts_at,
		duration_minutes = EXCLUDED.duration_minutes,
		technician_ids = EXCLUDED.technician_ids,
		confirmed = EXCLUDED.confirmed,
		dead_run = EXCLUDED.dead_run;
	`)
	if err != nil {
		return fmt.Errorf("seed jobs: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, j := range data {
		tech, err := json.Marshal(j.TechnicianIDs)
		if err != nil {
			return fmt.Errorf("seed jobs: job_id=%s technician_ids: %w", j.JobID, err)
		}
		if _, err := stmt.ExecContext(ctx, j.JobID, j.Title, j.Location, j.StartsAt.UTC(), j.DurationMinutes, string(tech), j.Confirmed, j.DeadRun); err != nil {
			return fmt.Errorf("seed jobs: insert job_id=%s: %w", j.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed jobs: commit tx: %w", err)
	}
	return nil
}

func (j *JobSeed) validate() error {
	j.JobID = strings.TrimSpace(j.JobID)
	j.Location = strings.TrimSpace(j.Location)
	switch {
	case j.JobID == "":
		return errors.New("job_id cannot be empty")
	case j.Location == "":
		return fmt.Errorf("job_id=%s: location cannot be empty", j.JobID)
	case j.StartsAt.IsZero():
		return fmt.Errorf("job_id=%s: starts_at is required", j.JobID)
	case j.DurationMinutes < 1 || j.DurationMinutes > 1440:
		return fmt.Errorf("job_id=%s: duration_minutes must be between 1 and 1440", j.JobID)
	}
	if j.TechnicianIDs == nil {
		j.TechnicianIDs = []string{}
	}
	return nil
}
