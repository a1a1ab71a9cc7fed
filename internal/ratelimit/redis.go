package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix  = "seating:ratelimit"
	redisPingTimeout  = 2 * time.Second
	minimumBucketTTL  = time.Minute
	scriptResultWidth = 3
)

// tokenBucketScript refills whole intervals since the last refill, then takes one token.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
  tokens = capacity
  last_refill = now_ms
end

if interval_ms > 0 then
  local elapsed = math.max(0, now_ms - last_refill)
  local intervals = math.floor(elapsed / interval_ms)
  if intervals > 0 then
    tokens = math.min(capacity, tokens + intervals)
    last_refill = last_refill + (intervals * interval_ms)
  end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

var errUnexpectedScriptResult = errors.New("ratelimit: unexpected script result")

// RedisOptions locates the Redis server.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, options RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     options.Address,
		Password: options.Password,
		DB:       options.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: redis ping failed: %w", err)
	}
	return client, nil
}

// RedisLimiter shares token buckets across API replicas.
type RedisLimiter struct {
	client   redis.Scripter
	settings Settings
	prefix   string
	clock    func() time.Time
}

// NewRedisLimiter constructs a limiter backed by the given client.
func NewRedisLimiter(client redis.Scripter, settings Settings) *RedisLimiter {
	if settings.Burst <= 0 {
		settings.Burst = 1
	}
	return &RedisLimiter{
		client:   client,
		settings: settings,
		prefix:   defaultKeyPrefix,
		clock:    time.Now,
	}
}

// Allow runs the token bucket script for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	interval := l.settings.refillInterval()
	ttl := interval * time.Duration(l.settings.Burst)
	if ttl < minimumBucketTTL {
		ttl = minimumBucketTTL
	}
	result, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + ":" + key},
		l.clock().UnixMilli(),
		l.settings.Burst,
		interval.Milliseconds(),
		int64(ttl/time.Second),
	).Result()
	if err != nil {
		return Decision{}, err
	}
	return parseScriptResult(result)
}

func parseScriptResult(result interface{}) (Decision, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != scriptResultWidth {
		return Decision{}, fmt.Errorf("%w: %#v", errUnexpectedScriptResult, result)
	}
	allowed, err := asInt64(values[0])
	if err != nil {
		return Decision{}, err
	}
	remaining, err := asInt64(values[1])
	if err != nil {
		return Decision{}, err
	}
	retryMillis, err := asInt64(values[2])
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:    allowed == 1,
		Remaining:  int(remaining),
		RetryAfter: time.Duration(retryMillis) * time.Millisecond,
	}, nil
}

func asInt64(value interface{}) (int64, error) {
	switch typed := value.(type) {
	case int64:
		return typed, nil
	case int:
		return int64(typed), nil
	case string:
		return strconv.ParseInt(typed, 10, 64)
	default:
		return 0, fmt.Errorf("%w: %#v", errUnexpectedScriptResult, value)
	}
}
