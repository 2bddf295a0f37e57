package datafeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fazecat/contractionscout/Internal/utils/telemetry"
)

const barKeyFormat = "bars:%s:%s:%d"

type CacheConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// CachedFeed serves bars from Redis and falls through to the upstream feed on
// a miss. Redis errors never fail a request: the cache is skipped instead.
type CachedFeed struct {
	client   *redis.Client
	upstream BarFeed
	ttl      time.Duration
	metrics  *telemetry.Metrics
	logger   zerolog.Logger

	mu      sync.Mutex
	healthy bool
}

// NewRedisClient connects to Redis. A failed ping is returned alongside the
// client so callers can still run degraded.
func NewRedisClient(ctx context.Context, cfg CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}
	return client, nil
}

func NewCachedFeed(client *redis.Client, upstream BarFeed, ttl time.Duration, metrics *telemetry.Metrics, logger zerolog.Logger) *CachedFeed {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedFeed{
		client:   client,
		upstream: upstream,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger.With().Str("component", "bar_cache").Logger(),
		healthy:  true,
	}
}

func barKey(symbol, timeframe string, limit int) string {
	return fmt.Sprintf(barKeyFormat, strings.ToUpper(symbol), timeframe, limit)
}

func (c *CachedFeed) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	key := barKey(symbol, timeframe, limit)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var bars []Bar
		if jsonErr := json.Unmarshal(data, &bars); jsonErr == nil && len(bars) > 0 {
			c.recordSuccess()
			c.metrics.ObserveCache(true)
			return bars, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding unreadable cache entry")
	case errors.Is(err, redis.Nil):
		c.recordSuccess()
	default:
		c.recordFailure(err)
		c.metrics.ObserveCache(false)
		return c.upstream.GetBars(ctx, symbol, timeframe, limit)
	}
	c.metrics.ObserveCache(false)

	bars, err := c.upstream.GetBars(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(bars)
	if err != nil {
		return bars, nil
	}
	if err := c.client.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
		c.recordFailure(err)
	}
	return bars, nil
}

// Invalidate drops every cached window of symbol for timeframe.
func (c *CachedFeed) Invalidate(ctx context.Context, symbol, timeframe string) error {
	pattern := fmt.Sprintf("bars:%s:%s:*", strings.ToUpper(symbol), timeframe)
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to list cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CachedFeed) IsHealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

func (c *CachedFeed) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.healthy {
		c.logger.Warn().Err(err).Msg("redis unavailable, serving bars from upstream")
	}
	c.healthy = false
}

func (c *CachedFeed) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.healthy {
		c.logger.Info().Msg("redis recovered")
	}
	c.healthy = true
}
