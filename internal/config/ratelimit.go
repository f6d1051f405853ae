package config

import "time"

// RateLimitConfig configures the Redis token bucket placed in front of the
// auth and access-token routes.  The bucket holds Capacity tokens and
// regains RefillTokens every RefillInterval.  KeyStrategy names the parts of
// the bucket key joined by underscores, e.g. "ip_route" or "ip_user".
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 2*time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "cvb:rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}.normalized()
}

// normalized clamps values that would make the bucket useless.  The key TTL
// is at least long enough for an empty bucket to refill.
func (c RateLimitConfig) normalized() RateLimitConfig {
	c.Capacity = max(c.Capacity, 1)
	c.RefillTokens = max(c.RefillTokens, 1)
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	full := time.Duration(c.Capacity/c.RefillTokens+1) * c.RefillInterval
	c.TTL = max(c.TTL, full)
	return c
}
