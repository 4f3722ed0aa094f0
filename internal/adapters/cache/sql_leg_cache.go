package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/platform/logger"
	"drive-time-scheduler/internal/platform/obs"
	"drive-time-scheduler/internal/ports"
)

// SQLLegCache stores origin -> destination legs in Postgres (travel_leg_cache).
// Keys are normalized with domain.NormalizeLocation on both read and write.
type SQLLegCache struct {
	DB  *sql.DB
	Log logger.Logger
}

func NewSQLLegCache(db *sql.DB, log logger.Logger) *SQLLegCache {
	return &SQLLegCache{DB: db, Log: logger.OrNop(log)}
}

// GetMany returns the cached legs from origin; misses are simply absent.
func (s *SQLLegCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, s.Log, "leg.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("leg cache: db is nil")
	}
	origin = domain.NormalizeLocation(origin)
	if origin == "" {
		return nil, errors.New("get leg cache: origin must not be empty")
	}

	dests := normalizedKeys(destinations)
	if len(dests) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT destination, distance_meters, duration_seconds
	FROM travel_leg_cache
	WHERE origin = $1
		AND destination = ANY($2::text[]);
	`, origin, dests)
	if err != nil {
		return nil, fmt.Errorf("get leg cache: query travel_leg_cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ports.DistanceResult, len(dests))
	for rows.Next() {
		var dest string
		var r ports.DistanceResult
		if err := rows.Scan(&dest, &r.DistanceMeters, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("get leg cache: scan row: %w", err)
		}
		out[dest] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get leg cache: row iteration: %w", err)
	}

	return out, nil
}

// PutMany upserts the legs from origin in one transaction.
func (s *SQLLegCache) PutMany(ctx context.Context, origin string, results map[string]ports.DistanceResult) error {
	if s.DB == nil {
		return errors.New("leg cache: db is nil")
	}
	origin = domain.NormalizeLocation(origin)
	if origin == "" {
		return errors.New("put leg cache: origin must not be empty")
	}
	if len(results) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put leg cache: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO travel_leg_cache (origin, destination, distance_meters, duration_seconds, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (origin, destination) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		duration_seconds = EXCLUDED.duration_seconds,
		updated_at = EXCLUDED.updated_at;
	`)
	if err != nil {
		return fmt.Errorf("put leg cache: prepare: %w", err)
	}
	defer stmt.Close()

	for dest, r := range results {
		dest = domain.NormalizeLocation(dest)
		if dest == "" {
			return errors.New("put leg cache: empty destination key")
		}
		if _, err := stmt.ExecContext(ctx, origin, dest, r.DistanceMeters, r.DurationSeconds); err != nil {
			return fmt.Errorf("put leg cache dest=%q: %w", dest, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put leg cache: commit: %w", err)
	}
	return nil
}
