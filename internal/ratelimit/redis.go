package ratelimit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window keys live two seconds: one for the active window, one so a reset
// time just past the boundary still resolves before the key expires.
const redisWindowTTL = 2 * time.Second

// RedisLimiter counts fixed windows in Redis so reseller and device limits
// hold across replicas of the service.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter with the given key prefix.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix)}
}

// Allow consumes one slot from the key's current one-second window. INCR
// plus EXPIRE NX in one pipeline keeps the count-and-arm atomic per window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if l == nil || l.client == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	second := now.Unix()
	reset := time.Unix(second+1, 0).UTC()
	windowKey := l.windowKey(key, second)

	var incr *redis.IntCmd
	_, errPipe := l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.ExpireNX(ctx, windowKey, redisWindowTTL)
		return nil
	})
	if errPipe != nil {
		return Result{}, errPipe
	}

	used := incr.Val()
	if used > int64(limit) {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(used), Reset: reset}, nil
}

// windowKey namespaces the caller's key with the prefix and window second.
func (l *RedisLimiter) windowKey(key string, second int64) string {
	suffix := key + ":" + strconv.FormatInt(second, 10)
	if l.prefix == "" {
		return suffix
	}
	return l.prefix + ":" + suffix
}
