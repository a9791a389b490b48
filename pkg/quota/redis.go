package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tagdown/pkg/config"
)

const redisKeyPrefix = "tagdown:quota:"

// incrementScript applies the window-reset rule and increments atomically
// on the redis side, so concurrent service instances cannot lose updates.
// KEYS[1] is the record hash; ARGV[1] is now and ARGV[2] the window, both
// in milliseconds. Returns {count, window_start}.
var incrementScript = redis.NewScript(`
local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local start = tonumber(redis.call('HGET', KEYS[1], 'window_start') or '0')
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
if start == 0 or now - start > window then
  count = 0
  start = now
end
count = count + 1
redis.call('HSET', KEYS[1], 'count', count, 'window_start', start)
redis.call('PEXPIRE', KEYS[1], window)
return {count, start}
`)

// RedisStore is a redis-backed implementation of Store for deployments
// with more than one service instance sharing the quota counters.
type RedisStore struct {
	client redis.UniversalClient
	window time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redis and verifies the connection with a
// bounded ping before returning the store.
func NewRedisStore(cfg config.RedisConfig, window time.Duration) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreWithClient(client, window), nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client redis.UniversalClient, window time.Duration) *RedisStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisStore{client: client, window: window}
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get reads the effective record for an identity. An expired or missing
// hash reads as count 0.
func (s *RedisStore) Get(ctx context.Context, identity string) (Record, bool, error) {
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+identity).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("quota get for %q: %w", identity, err)
	}

	now := time.Now()
	if len(fields) == 0 {
		return Record{Identity: identity, WindowStart: now}, false, nil
	}

	count, err := strconv.ParseInt(fields["count"], 10, 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("quota get for %q: corrupt count %q: %w", identity, fields["count"], err)
	}
	startMillis, err := strconv.ParseInt(fields["window_start"], 10, 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("quota get for %q: corrupt window_start %q: %w", identity, fields["window_start"], err)
	}
	record := Record{
		Identity:    identity,
		Count:       count,
		WindowStart: time.UnixMilli(startMillis),
	}

	if record.Expired(now, s.window) {
		return Record{Identity: identity, WindowStart: now}, false, nil
	}
	return record, true, nil
}

// Increment runs the atomic increment-with-reset script and returns the
// post-increment record.
func (s *RedisStore) Increment(ctx context.Context, identity string) (Record, error) {
	now := time.Now()
	result, err := incrementScript.Run(ctx, s.client,
		[]string{redisKeyPrefix + identity},
		now.UnixMilli(), s.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Record{}, fmt.Errorf("quota increment for %q: %w", identity, err)
	}
	if len(result) != 2 {
		return Record{}, fmt.Errorf("quota increment for %q: unexpected script reply %v", identity, result)
	}

	return Record{
		Identity:    identity,
		Count:       result[0],
		WindowStart: time.UnixMilli(result[1]),
	}, nil
}
