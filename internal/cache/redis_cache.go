package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/ports"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

// RedisCache keeps the latest reading per location so dashboard polls do not
// hit the store. It is write-through and best-effort: a cache miss or failure
// always falls back to the store.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCache(addr, password string, db int, ttl time.Duration, log logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cacheLog := log.WithField("component", "redis_cache")
	cacheLog.Info("Redis latest-reading cache initialized")

	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: cacheLog,
	}, nil
}

func (c *RedisCache) SetLatest(ctx context.Context, reading entities.Reading) error {
	// RawPayload stays in the store and the archive; the cache only serves
	// the normalized shape.
	reading.RawPayload = nil

	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	if err := c.client.Set(ctx, latestKey(reading.LocationID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set latest reading in Redis: %w", err)
	}
	return nil
}

func (c *RedisCache) GetLatest(ctx context.Context, locationID string) (*entities.Reading, error) {
	data, err := c.client.Get(ctx, latestKey(locationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest reading from Redis: %w", err)
	}

	var reading entities.Reading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached reading: %w", err)
	}
	return &reading, nil
}

func (c *RedisCache) Close() error {
	c.logger.Info("Closing Redis cache...")
	return c.client.Close()
}

func latestKey(locationID string) string {
	return "reading:latest:" + locationID
}

var _ ports.Cache = (*RedisCache)(nil)
