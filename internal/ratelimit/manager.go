package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// After a Redis failure the manager counts in memory for this long before
// redialing, so a dead Redis cannot add connect latency to every generate
// or verify call.
const redisRetryDelay = 30 * time.Second

// SettingsProvider supplies the latest rate limit settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// redisTarget identifies the configured Redis backend; a change in any
// field forces a reconnect.
type redisTarget struct {
	addr     string
	password string
	db       int
	prefix   string
}

// Manager enforces the per-reseller generate limit and the per-device
// verify limit. Counting happens in Redis when settings enable it,
// otherwise in process memory; Redis failures fall back to memory.
type Manager struct {
	settings  SettingsProvider
	nowFn     func() time.Time
	memory    *MemoryLimiter
	newClient RedisClientFactory

	mu             sync.Mutex
	redis          *RedisLimiter
	target         redisTarget
	redisDownUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	m := &Manager{
		settings:  provider,
		nowFn:     nowFn,
		memory:    NewMemoryLimiter(),
		newClient: newRedisClient,
	}
	if m.settings == nil {
		m.settings = LoadSettingsConfig
	}
	if m.nowFn == nil {
		m.nowFn = time.Now
	}
	if m.newClient == nil {
		m.newClient = redis.NewClient
	}
	return m
}

// Allow consumes one slot for the key. A limit of zero or less means
// unlimited.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	cfg := m.settings()

	if cfg.RedisEnabled {
		if result, errRedis := m.allowRedis(ctx, cfg, key, limit, now); errRedis == nil {
			return result, nil
		}
	}
	return m.memory.Allow(ctx, key, limit, now)
}

func (m *Manager) allowRedis(ctx context.Context, cfg SettingsConfig, key string, limit int, now time.Time) (Result, error) {
	limiter, errConnect := m.redisLimiter(ctx, cfg, now)
	if errConnect != nil {
		return Result{}, errConnect
	}
	result, errAllow := limiter.Allow(ctx, key, limit, now)
	if errAllow != nil {
		m.markRedisDown(errAllow, now)
		return Result{}, errAllow
	}
	return result, nil
}

// redisLimiter returns a limiter for the configured target, reconnecting
// when the settings change. It refuses to dial while the retry delay from
// a previous failure is still running.
func (m *Manager) redisLimiter(ctx context.Context, cfg SettingsConfig, now time.Time) (*RedisLimiter, error) {
	target := redisTarget{
		addr:     strings.TrimSpace(cfg.RedisAddr),
		password: cfg.RedisPassword,
		db:       cfg.RedisDB,
		prefix:   cfg.RedisPrefix,
	}
	if target.addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}
	if target.db < 0 {
		target.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.redisDownUntil.IsZero() {
		if now.Before(m.redisDownUntil) {
			return nil, errors.New("rate limit redis: backend marked down")
		}
		m.redisDownUntil = time.Time{}
	}

	if m.redis != nil && m.target == target {
		return m.redis, nil
	}
	if m.redis != nil {
		_ = m.redis.client.Close()
		m.redis = nil
	}

	client := m.newClient(&redis.Options{
		Addr:     target.addr,
		Password: target.password,
		DB:       target.db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		m.redisDownUntil = now.Add(redisRetryDelay)
		log.WithError(errPing).Warn("rate limit: redis unreachable, counting in memory")
		return nil, errPing
	}

	m.redis = NewRedisLimiter(client, target.prefix)
	m.target = target
	return m.redis, nil
}

func (m *Manager) markRedisDown(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.redisDownUntil.IsZero() && now.Before(m.redisDownUntil) {
		return
	}
	m.redisDownUntil = now.Add(redisRetryDelay)
	log.WithError(err).Warn("rate limit: redis failed, counting in memory")
}
