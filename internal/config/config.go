// Package config loads service settings from an optional file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every override. Nested keys use a double underscore:
	// SCHEDULER_ORS__API_KEY sets ors.api_key.
	EnvPrefix = "SCHEDULER_"
	// FileEnv names the variable holding an optional YAML or JSON config path.
	FileEnv = "SCHEDULER_CONFIG"
)

type Config struct {
	HTTP     HTTPConfig     `json:"http"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	ORS      ORSConfig      `json:"ors"`
	Schedule ScheduleConfig `json:"schedule"`
	Cache    CacheConfig    `json:"cache"`
	Log      LogConfig      `json:"log"`
}

type HTTPConfig struct {
	Port string `json:"port"`
}

type DatabaseConfig struct {
	URL string `json:"url"`
}

// RedisConfig enables the shared summary store when Addr is set.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	TTLHours int    `json:"ttl_hours"`
}

func (r RedisConfig) TTL() time.Duration { return time.Duration(r.TTLHours) * time.Hour }

type ORSConfig struct {
	APIKey            string  `json:"api_key"`
	BaseURL           string  `json:"base_url"`
	Profile           string  `json:"profile"`
	Country           string  `json:"country"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type ScheduleConfig struct {
	DepotAddress           string `json:"depot_address"`
	NonWorkingWeekdays     []int  `json:"non_working_weekdays"`
	DefaultDurationMinutes int    `json:"default_duration_minutes"`
}

// Weekdays converts NonWorkingWeekdays (0 = Sunday).
func (s ScheduleConfig) Weekdays() []time.Weekday {
	out := make([]time.Weekday, 0, len(s.NonWorkingWeekdays))
	for _, d := range s.NonWorkingWeekdays {
		out = append(out, time.Weekday(d))
	}
	return out
}

type CacheConfig struct {
	DebounceMS  int `json:"debounce_ms"`
	DaysBefore  int `json:"days_before"`
	MonthsAfter int `json:"months_after"`
}

func (c CacheConfig) Debounce() time.Duration { return time.Duration(c.DebounceMS) * time.Millisecond }

type LogConfig struct {
	Level string `json:"level"`
}

// Default returns the settings used for keys that are not configured.
func Default() Config {
	return Config{
		HTTP:  HTTPConfig{Port: "8080"},
		Redis: RedisConfig{TTLHours: 24},
		ORS: ORSConfig{
			BaseURL:           "https://api.openrouteservice.org",
			Profile:           "driving-car",
			RequestsPerSecond: 1,
		},
		Schedule: ScheduleConfig{
			NonWorkingWeekdays:     []int{int(time.Friday), int(time.Saturday)},
			DefaultDurationMinutes: 60,
		},
		Cache: CacheConfig{DebounceMS: 300, DaysBefore: 7, MonthsAfter: 2},
		Log:   LogConfig{Level: "info"},
	}
}

// FromEnv loads .env when present, then Load with the file named by SCHEDULER_CONFIG.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()
	return Load(os.Getenv(FileEnv))
}

// Load layers defaults, the optional file at path and SCHEDULER_ variables,
// in that order, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load config file %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	// Slices are decoded into a nil field so a configured list replaces the
	// default instead of being merged into it element by element.
	cfg := Default()
	weekdays := cfg.Schedule.NonWorkingWeekdays
	cfg.Schedule.NonWorkingWeekdays = nil
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if !k.Exists("schedule.non_working_weekdays") {
		cfg.Schedule.NonWorkingWeekdays = weekdays
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Port) == "" {
		errs = append(errs, errors.New("http.port is required"))
	}
	for _, d := range c.Schedule.NonWorkingWeekdays {
		if d < 0 || d > 6 {
			errs = append(errs, fmt.Errorf("schedule.non_working_weekdays: %d is not a weekday (0-6)", d))
		}
	}
	if d := c.Schedule.DefaultDurationMinutes; d < 1 || d > 1440 {
		errs = append(errs, fmt.Errorf("schedule.default_duration_minutes: %d not in 1..1440", d))
	}
	if c.Cache.DebounceMS <= 0 {
		errs = append(errs, errors.New("cache.debounce_ms must be positive"))
	}
	if c.Cache.DaysBefore < 0 || c.Cache.MonthsAfter < 0 {
		errs = append(errs, errors.New("cache.days_before and cache.months_after must not be negative"))
	}
	if c.ORS.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("ors.requests_per_second must be positive"))
	}
	return errors.Join(errs...)
}

// Get returns the environment variable key, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
