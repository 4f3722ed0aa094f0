package main

import (
	"context"
	"database/sql"
	"os"

	"drive-time-scheduler/internal/adapters/repositories"
	"drive-time-scheduler/internal/config"
	"drive-time-scheduler/internal/platform/db"
	"drive-time-scheduler/internal/platform/logger"
)

func main() {
	cfg, err := config.FromEnv()
	log := logger.New("dbtool", "info")
	if err != nil {
		log.Errorf("load config: %v", err)
		os.Exit(1)
	}

	if cfg.Database.URL == "" {
		log.Errorf("database.url is required (SCHEDULER_DATABASE__URL)")
		os.Exit(1)
	}

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	defer database.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/jobs.json")
	if err := initAndSeed(ctx, log, database, seedPath); err != nil {
		log.Errorf("%v", err)
		database.Close()
		os.Exit(1)
	}
}

func initAndSeed(ctx context.Context, log logger.Logger, database *sql.DB, seedPath string) error {
	log.Infof("initializing database schema...")
	if err := repositories.InitSchema(ctx, database); err != nil {
		return err
	}
	log.Infof("schema ready")

	if _, err := os.Stat(seedPath); err != nil {
		log.Warnf("no seed file at %s, skipping seed", seedPath)
		return nil
	}

	log.Infof("seeding jobs from %s...", seedPath)
	if err := repositories.SeedFromJSON(ctx, database, seedPath); err != nil {
		return err
	}
	log.Infof("seeding complete")
	return nil
}
