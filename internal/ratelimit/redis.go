package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript performs the check-then-increment as one atomic operation on
// the Redis side. Returns {admitted, remaining, ttl_seconds}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = redis.call('GET', key)
if not current then
	redis.call('SET', key, 1, 'EX', window)
	return {1, limit - 1, window}
end

current = tonumber(current)
local ttl = redis.call('TTL', key)
if ttl < 0 then
	ttl = window
end

if current >= limit then
	return {0, 0, ttl}
end

redis.call('INCR', key)
return {1, limit - current - 1, ttl}
`)

type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(redisURL string) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisRateLimiter{client: client}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, tenantID string, limit int) (bool, int, time.Time, error) {
	key := "ratelimit:" + tenantID

	res, err := allowScript.Run(ctx, r.client, []string{key},
		limit, int(Window.Seconds())).Int64Slice()
	if err != nil {
		// Fail closed: an unreachable counter store must not grant
		// unmetered admission.
		return false, 0, time.Time{}, err
	}

	allowed := res[0] == 1
	remaining := int(res[1])
	resetAt := time.Now().Add(time.Duration(res[2]) * time.Second)

	return allowed, remaining, resetAt, nil
}

func (r *RedisRateLimiter) Close() error {
	return r.client.Close()
}
