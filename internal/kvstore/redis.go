package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afedeli/pressline/internal/observability"
	"github.com/afedeli/pressline/internal/reliability"
)

const (
	connectBackoffBase = 50 * time.Millisecond
	connectBackoffCap  = 2 * time.Second
)

// RedisConfig holds connection settings for the Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// MaxListLen bounds every stored list; appends trim to the newest entries.
	MaxListLen int64
	// ListTTL is refreshed on every append.
	ListTTL time.Duration
	// ConnectAttempts bounds the startup ping retry loop.
	ConnectAttempts int
}

// RedisStore implements Store on a Redis connection. Every operation is
// timed and folded into metrics regardless of outcome.
type RedisStore struct {
	client     *redis.Client
	metrics    *observability.Metrics
	maxListLen int64
	listTTL    time.Duration
	attempts   int
	connected  atomic.Bool
}

func NewRedisStore(cfg RedisConfig, metrics *observability.Metrics) *RedisStore {
	if cfg.MaxListLen <= 0 {
		cfg.MaxListLen = 50
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 24 * time.Hour
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 10
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: 5 * time.Second,
		}),
		metrics:    metrics,
		maxListLen: cfg.MaxListLen,
		listTTL:    cfg.ListTTL,
		attempts:   cfg.ConnectAttempts,
	}
}

// Connect pings the server until it answers, backing off linearly with the
// attempt number, capped. Gives up after the configured attempt budget.
func (s *RedisStore) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			s.connected.Store(true)
			return nil
		}
		lastErr = err
		s.metrics.ObserveConnectionError()
		log.Printf("redis connect attempt %d/%d failed: %v", attempt, s.attempts, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reliability.Backoff(attempt, connectBackoffBase, connectBackoffCap)):
		}
	}
	return fmt.Errorf("redis unreachable after %d attempts: %w", s.attempts, lastErr)
}

// Connected reports the connectivity state observed by the most recent
// operation, for health checks.
func (s *RedisStore) Connected() bool {
	return s.connected.Load()
}

func (s *RedisStore) observe(op string, start time.Time, err error) {
	s.metrics.ObserveStoreOp(op, time.Since(start), err)
	if err == nil {
		s.connected.Store(true)
		return
	}
	if reliability.IsTransient(err) {
		s.connected.Store(false)
		s.metrics.ObserveConnectionError()
	}
}

// Get returns the value for key, or absent. Transport failures are logged
// and degrade to absent; caching stays advisory, never load-bearing.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	start := time.Now()
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		s.observe("get", start, nil)
		return "", false
	}
	s.observe("get", start, err)
	if err != nil {
		log.Printf("redis get %s failed: %v", key, err)
		return "", false
	}
	return val, true
}

// Set writes best-effort: a failure must not abort the caller's primary
// operation.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) {
	start := time.Now()
	err := s.client.Set(ctx, key, value, ttl).Err()
	s.observe("set", start, err)
	if err != nil {
		log.Printf("redis set %s failed: %v", key, err)
	}
}

// ListAppend appends item, trims the list to its newest MaxListLen entries
// and refreshes the TTL as one transactional batch, so a successful append
// can never skip the trim or the expiry refresh.
func (s *RedisStore) ListAppend(ctx context.Context, key, item string) error {
	start := time.Now()
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, item)
	pipe.LTrim(ctx, key, -s.maxListLen, -1)
	pipe.Expire(ctx, key, s.listTTL)
	_, err := pipe.Exec(ctx)
	s.observe("list_append", start, err)
	if err != nil {
		return fmt.Errorf("list append %s: %w", key, err)
	}
	return nil
}

// ListRange returns items in stored order. Errors propagate: an empty result
// from a down store must not masquerade as an empty list.
func (s *RedisStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	t := time.Now()
	items, err := s.client.LRange(ctx, key, start, stop).Result()
	s.observe("list_range", t, err)
	if err != nil {
		return nil, fmt.Errorf("list range %s: %w", key, err)
	}
	return items, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.client.Del(ctx, key).Err()
	s.observe("delete", start, err)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	s.connected.Store(false)
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
