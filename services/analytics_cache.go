package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	analyticsGenerationKey = "scoring:analytics:generation"
	analyticsKeyPrefix     = "scoring:analytics:report"
	DefaultAnalyticsTTL    = 5 * time.Minute
)

// RedisAnalyticsCache keeps built reports in Redis. Keys embed a generation
// counter; Invalidate bumps it so stale reports are never read again and
// expire on their own.
type RedisAnalyticsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAnalyticsCache(client *redis.Client, ttl time.Duration) *RedisAnalyticsCache {
	if ttl <= 0 {
		ttl = DefaultAnalyticsTTL
	}
	return &RedisAnalyticsCache{client: client, ttl: ttl}
}

func (c *RedisAnalyticsCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, analyticsGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisAnalyticsCache) key(ctx context.Context, filter AnalyticsFilter) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", fmt.Errorf("read analytics generation: %w", err)
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(raw)
	return fmt.Sprintf("%s:%d:%s", analyticsKeyPrefix, gen, hex.EncodeToString(sum[:])), nil
}

// Get returns nil without error on a miss.
func (c *RedisAnalyticsCache) Get(ctx context.Context, filter AnalyticsFilter) (*AnalyticsReport, error) {
	key, err := c.key(ctx, filter)
	if err != nil {
		return nil, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read analytics report: %w", err)
	}
	var report AnalyticsReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode analytics report: %w", err)
	}
	return &report, nil
}

func (c *RedisAnalyticsCache) Put(ctx context.Context, filter AnalyticsFilter, report *AnalyticsReport) error {
	key, err := c.key(ctx, filter)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode analytics report: %w", err)
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *RedisAnalyticsCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, analyticsGenerationKey).Err()
}
