package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the deployment site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback site name.
	DefaultSiteName = "KeyMint"
	// RateLimitKey controls the default key generation rate limit per second.
	RateLimitKey = "RATE_LIMIT"
	// VerifyRateLimitKey controls the per-device verify rate limit per second.
	VerifyRateLimitKey = "VERIFY_RATE_LIMIT"
	// RateLimitRedisEnabledKey toggles Redis-backed rate limiting.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for rate limiting.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for rate limiting.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for rate limiting.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// DefaultRateLimit is the fallback generation rate limit (0 means unlimited).
	DefaultRateLimit = 0
	// DefaultVerifyRateLimit is the fallback per-device verify rate limit.
	DefaultVerifyRateLimit = 5
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "keymint:rl"
)
