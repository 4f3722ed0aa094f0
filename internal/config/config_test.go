package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, cfg.Schedule.Weekdays())
	assert.Equal(t, 60, cfg.Schedule.DefaultDurationMinutes)
	assert.Equal(t, 300*time.Millisecond, cfg.Cache.Debounce())
	assert.Equal(t, 7, cfg.Cache.DaysBefore)
	assert.Equal(t, 2, cfg.Cache.MonthsAfter)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
database:
  url: postgres://file
schedule:
  depot_address: 1 Depot Rd
  non_working_weekdays: [0]
cache:
  debounce_ms: 150
`), 0o644))

	t.Setenv("SCHEDULER_DATABASE__URL", "postgres://env")
	t.Setenv("SCHEDULER_ORS__API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "secret", cfg.ORS.APIKey)
	assert.Equal(t, "1 Depot Rd", cfg.Schedule.DepotAddress)
	assert.Equal(t, []time.Weekday{time.Sunday}, cfg.Schedule.Weekdays())
	assert.Equal(t, 150*time.Millisecond, cfg.Cache.Debounce())
	assert.Equal(t, "driving-car", cfg.ORS.Profile)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	_, err := Load("scheduler.toml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Schedule.NonWorkingWeekdays = []int{7}
	cfg.Schedule.DefaultDurationMinutes = 0
	cfg.Cache.DebounceMS = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non_working_weekdays")
	assert.Contains(t, err.Error(), "default_duration_minutes")
	assert.Contains(t, err.Error(), "debounce_ms")

	assert.NoError(t, Default().Validate())
}

func TestGet(t *testing.T) {
	t.Setenv("SCHEDULER_TEST_SEED", "seed.json")
	assert.Equal(t, "seed.json", Get("SCHEDULER_TEST_SEED", "x"))
	assert.Equal(t, "x", Get("SCHEDULER_TEST_MISSING", "x"))
}
