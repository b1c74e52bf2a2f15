package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The expiry is set only by the first hit so the window stays fixed.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// RedisFixedWindow shares the fixed window counter between instances.
type RedisFixedWindow struct {
	client *redis.Client
	prefix string
	window time.Duration
	max    int
}

// NewRedisFixedWindow builds a Redis backed limiter. Keys are stored as
// prefix + ":" + key.
func NewRedisFixedWindow(client *redis.Client, prefix string, window time.Duration, max int) *RedisFixedWindow {
	if prefix == "" {
		prefix = "contest:ratelimit"
	}
	return &RedisFixedWindow{client: client, prefix: prefix, window: window, max: max}
}

// Allow implements Limiter.
func (l *RedisFixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	values, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}
	if len(values) != 2 {
		return Decision{}, fmt.Errorf("rate limit counter: unexpected reply %v", values)
	}

	count, ttl := int(values[0]), time.Duration(values[1])*time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}

	if count > l.max {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: l.max - count}, nil
}
