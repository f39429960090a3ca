// Package cache wraps the Redis client used for request throttling
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/onegreenvn/storybook-services-backend/internal/config"
)

// Client is a Redis connection
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// RateLimiter is a sliding window limiter backed by a sorted set per key
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow records the request and reports whether it fits in the window
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	pipe := l.client.rdb.TxPipeline()

	// drop requests that left the window
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if countCmd.Val() >= int64(limit) {
		return false, nil
	}

	pipe = l.client.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Reset clears the counter of a key
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	return l.client.rdb.Del(ctx, key).Err()
}

// RateLimitKey builds the limiter key for a client and route
func RateLimitKey(clientIP, route string) string {
	return fmt.Sprintf("storybook:ratelimit:%s:%s", clientIP, route)
}
