package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ramtunguturi36/cvb/internal/config"
)

// bucketScript refills continuously at rate tokens per millisecond, then
// takes one token if a whole one is available.  Returns
// {allowed, floor(remaining), wait_ms}.
var bucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local stamp = tonumber(redis.call('HGET', KEYS[1], 'stamp'))
if tokens == nil or stamp == nil then
	tokens = capacity
	stamp = now
end
tokens = math.min(capacity, tokens + math.max(0, now - stamp) * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
elseif rate > 0 then
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'stamp', now)
redis.call('PEXPIRE', KEYS[1], ttl_ms)
return {allowed, math.floor(tokens), wait}
`)

// Decision is the outcome of one Limiter.Allow call.
type Decision struct {
	Allowed   bool
	Remaining int64
	RetryIn   time.Duration
}

// Limiter is a Redis token bucket shared by every server instance.
type Limiter struct {
	rdb  *redis.Client
	cfg  config.RateLimitConfig
	rate float64 // tokens per millisecond
}

func NewLimiter(rdb *redis.Client, cfg config.RateLimitConfig) *Limiter {
	rate := 0.0
	if ms := cfg.RefillInterval.Milliseconds(); ms > 0 {
		rate = float64(cfg.RefillTokens) / float64(ms)
	}
	return &Limiter{rdb: rdb, cfg: cfg, rate: rate}
}

// Allow takes one token from the bucket stored under key.
func (l *Limiter) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	res, err := bucketScript.Run(ctx, l.rdb, []string{key},
		l.cfg.Capacity,
		strconv.FormatFloat(l.rate, 'f', -1, 64),
		now.UnixMilli(),
		l.cfg.TTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limiter: unexpected reply %v", res)
	}
	return Decision{
		Allowed:   res[0] == 1,
		Remaining: res[1],
		RetryIn:   time.Duration(res[2]) * time.Millisecond,
	}, nil
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// NewTokenBucket limits requests per key with a Redis token bucket.  When
// Redis fails the request is let through and the failure logged.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	if log == nil {
		log = slog.Default()
	}
	limiter := NewLimiter(rdb, cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			d, err := limiter.Allow(c.Request().Context(), key, time.Now())
			if err != nil {
				log.Warn("rate limiter unavailable", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.Allowed {
				return next(c)
			}

			secs := retryAfterSeconds(d.RetryIn)
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.Info("rate limited", "key", key, "retry_in", d.RetryIn.String())
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"retry_after": secs,
			})
		}
	}
}

// retryAfterSeconds rounds up so that clients never retry too early.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// rateKey builds the bucket key from the parts named by cfg.KeyStrategy,
// an underscore-separated subset of ip, user and route.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	strategy := strings.ToLower(cfg.KeyStrategy)
	if strategy == "" {
		strategy = "ip_route"
	}
	parts := []string{cfg.Prefix}
	for _, p := range strings.Split(strategy, "_") {
		switch p {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", userKey(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(parts, ":")
}
