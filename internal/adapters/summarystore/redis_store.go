// Package summarystore shares day summaries between sessions and server instances.
package summarystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/platform/logger"
	"drive-time-scheduler/internal/platform/obs"
	"drive-time-scheduler/internal/ports"
)

const (
	keyPrefix         = "travel:summary"
	connectionTimeout = 5 * time.Second
	DefaultTTL        = 24 * time.Hour
)

// ErrEmptyAddress is returned when no Redis address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(opts Options) (*redis.Client, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisStore implements ports.DaySummaryStore on Redis string keys.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
	log    logger.Logger
}

var _ ports.DaySummaryStore = (*RedisStore)(nil)

// NewRedisStore stores summaries with the given TTL (DefaultTTL when <= 0).
func NewRedisStore(client redis.Cmdable, ttl time.Duration, log logger.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, log: logger.OrNop(log)}
}

// Key returns travel:summary:{depot hash}:{day}:{fingerprint}. The depot is
// normalized and hashed so addresses never end up in key names.
func Key(k ports.SummaryKey) string {
	depot := strconv.FormatUint(xxhash.Sum64String(strings.ToLower(domain.NormalizeLocation(k.Depot))), 16)
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, depot, k.Day, k.Fingerprint)
}

func (s *RedisStore) Get(ctx context.Context, key ports.SummaryKey) (_ *domain.DaySummary, err error) {
	defer obs.Time(ctx, s.log, "summarystore.Get")(&err)

	raw, err := s.client.Get(ctx, Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary %s: %w", key.Day, err)
	}

	var summary domain.DaySummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("get summary %s: decode: %w", key.Day, err)
	}
	return &summary, nil
}

func (s *RedisStore) Put(ctx context.Context, key ports.SummaryKey, summary domain.DaySummary) (err error) {
	defer obs.Time(ctx, s.log, "summarystore.Put")(&err)

	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("put summary %s: encode: %w", key.Day, err)
	}
	if err := s.client.Set(ctx, Key(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("put summary %s: %w", key.Day, err)
	}
	return nil
}
