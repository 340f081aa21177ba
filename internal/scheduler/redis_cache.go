package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/prospector/config"
	"github.com/mohammad-safakhou/prospector/internal/agent/core"
)

const redisKeyPrefix = "prospector:report:"

// RedisCache shares reports across instances. GETEX gives the
// read-refresh semantics the memory backend implements by hand.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg config.CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client, ttl: cfg.TTL}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (core.Report, bool, error) {
	raw, err := c.client.GetEx(ctx, redisKeyPrefix+key, c.ttl).Result()
	if err == redis.Nil {
		return core.Report{}, false, nil
	}
	if err != nil {
		return core.Report{}, false, fmt.Errorf("redis get: %w", err)
	}
	var report core.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return core.Report{}, false, fmt.Errorf("decode cached report: %w", err)
	}
	return report, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, report core.Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error { return c.client.Close() }
