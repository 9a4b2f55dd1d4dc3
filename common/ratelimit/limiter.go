package ratelimit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the limit resets (0 if allowed)
}

// RateLimiter provides fixed-window rate limiting using Redis + Lua
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
	logger Logger
}

// NewRateLimiter creates a new rate limiter with embedded Lua script
func NewRateLimiter(redisClient *redis.Client, logger Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		logger: logger,
	}
}

// CheckWebhookLimit checks the per-provider limit on the public webhook endpoint
func (r *RateLimiter) CheckWebhookLimit(ctx context.Context, provider string, limit int64) (*RateLimitResult, error) {
	key := fmt.Sprintf("rate_limit:webhook:%s", provider)
	return r.checkLimit(ctx, key, limit, 60)
}

// CheckUserLimit checks rate limit for a specific user
func (r *RateLimiter) CheckUserLimit(ctx context.Context, username string, limit int64, windowSec int) (*RateLimitResult, error) {
	key := fmt.Sprintf("rate_limit:user:%s", username)
	return r.checkLimit(ctx, key, limit, windowSec)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int64, windowSec int) (*RateLimitResult, error) {
	res, err := r.script.Run(ctx, r.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		r.logger.Error("rate limit script failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed for %s: %w", key, err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return nil, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	count, _ := vals[0].(int64)
	ttl, _ := vals[1].(int64)

	result := &RateLimitResult{
		Allowed:      count <= limit,
		CurrentCount: count,
		Limit:        limit,
	}
	if !result.Allowed {
		result.RetryAfterSeconds = ttl
		r.logger.Warn("rate limit exceeded", "key", key, "count", count, "limit", limit)
	}

	return result, nil
}
