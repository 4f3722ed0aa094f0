package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"drive-time-scheduler/internal/adapters/cache"
	"drive-time-scheduler/internal/adapters/distance"
	"drive-time-scheduler/internal/adapters/repositories"
	"drive-time-scheduler/internal/adapters/summarystore"
	"drive-time-scheduler/internal/api"
	"drive-time-scheduler/internal/config"
	"drive-time-scheduler/internal/daycache"
	"drive-time-scheduler/internal/platform/db"
	"drive-time-scheduler/internal/platform/logger"
	"drive-time-scheduler/internal/platform/metrics"
	"drive-time-scheduler/internal/ports"
	"drive-time-scheduler/internal/routing"
	"drive-time-scheduler/internal/services"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, ORS) behind ports and starts the HTTP server.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New("server", "info").Errorf("load config: %v", err)
		os.Exit(1)
	}
	log := logger.New("server", cfg.Log.Level)

	if err := run(cfg, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.URL == "" {
		return errors.New("database.url is required (SCHEDULER_DATABASE__URL)")
	}
	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	// ORS lookups go through persistent Postgres caches to avoid repeated geocode/matrix calls.
	legCache := cache.NewSQLLegCache(database, logger.New("leg-cache", cfg.Log.Level))
	geoCache := cache.NewSQLGeocodeCache(database, logger.New("geocode-cache", cfg.Log.Level))
	ors, err := distance.NewORSClient(distance.ORSConfig{
		APIKey:            cfg.ORS.APIKey,
		BaseURL:           cfg.ORS.BaseURL,
		Profile:           cfg.ORS.Profile,
		Country:           cfg.ORS.Country,
		RequestsPerSecond: cfg.ORS.RequestsPerSecond,
	}, legCache, geoCache, logger.New("ors", cfg.Log.Level))
	if err != nil {
		return err
	}
	engine := routing.NewEngine(distance.NewLegSummarizer(ors, logger.New("legs", cfg.Log.Level)))

	rec, err := metrics.NewProm(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	var store ports.DaySummaryStore
	if cfg.Redis.Addr != "" {
		client, err := summarystore.NewClient(summarystore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		store = summarystore.NewRedisStore(client, cfg.Redis.TTL(), logger.New("summary-store", cfg.Log.Level))
	} else {
		log.Infof("redis.addr not set: day summaries are not shared between sessions")
	}

	jobs := repositories.NewPostgresJobRepository(database, logger.New("jobs", cfg.Log.Level))

	cacheCfg := daycache.Config{
		Debounce:    cfg.Cache.Debounce(),
		DaysBefore:  cfg.Cache.DaysBefore,
		MonthsAfter: cfg.Cache.MonthsAfter,
	}
	cacheLog := logger.New("daycache", cfg.Log.Level)
	sessions := daycache.NewRegistry(func() *daycache.Cache {
		return daycache.New(cacheCfg, daycache.Deps{
			Jobs:    jobs,
			Engine:  engine,
			Store:   store,
			Log:     cacheLog,
			Metrics: rec,
		})
	})
	defer sessions.CloseAll()

	optimizer := services.NewOptimizer(engine, services.OptimizerOptions{
		Store:                  store,
		Log:                    logger.New("optimizer", cfg.Log.Level),
		Metrics:                rec,
		NonWorkingWeekdays:     cfg.Schedule.Weekdays(),
		DefaultDurationMinutes: cfg.Schedule.DefaultDurationMinutes,
	})

	router := api.NewRouter(api.Deps{
		Log:          logger.New("http", cfg.Log.Level),
		Jobs:         jobs,
		Optimizer:    optimizer,
		Sessions:     sessions,
		DefaultDepot: cfg.Schedule.DepotAddress,
	})

	// Timeouts are tuned for cold-cache rankings (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("server listening addr=%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
