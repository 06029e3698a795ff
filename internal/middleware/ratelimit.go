package middleware

import (
    "fmt"
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/jo-ticketing/internal/config"
)

// takeToken refills the bucket at KEYS[1] for the whole intervals elapsed
// since the last refill, then tries to take one token.  It returns
// {allowed, remaining, retry_after_ms}.  Running it server-side keeps the
// read-modify-write atomic across API replicas.
var takeToken = redis.NewScript(`
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill   = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl      = tonumber(ARGV[5])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local last   = tonumber(redis.call('HGET', KEYS[1], 'last'))
if tokens == nil or last == nil then
  tokens, last = capacity, now
end

local steps = math.floor(math.max(0, now - last) / interval)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  last = last + steps * interval
end

local allowed, wait = 0, 0
if tokens >= 1 then
  allowed, tokens = 1, tokens - 1
else
  wait = math.max(0, interval - (now - last))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last', last)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

// bucketResult is the decoded reply of takeToken.
type bucketResult struct {
    allowed   bool
    remaining int64
    retry     time.Duration
}

// retryAfterSeconds rounds up so clients never retry before a token exists.
func (r bucketResult) retryAfterSeconds() int {
    secs := int((r.retry + time.Second - 1) / time.Second)
    if secs < 1 {
        secs = 1
    }
    return secs
}

func parseBucketResult(v any) (bucketResult, error) {
    arr, ok := v.([]any)
    if !ok || len(arr) != 3 {
        return bucketResult{}, fmt.Errorf("unexpected script reply %#v", v)
    }
    nums := make([]int64, 3)
    for i, x := range arr {
        n, ok := x.(int64)
        if !ok {
            return bucketResult{}, fmt.Errorf("reply[%d] is %T, want int64", i, x)
        }
        nums[i] = n
    }
    return bucketResult{
        allowed:   nums[0] == 1,
        remaining: nums[1],
        retry:     time.Duration(nums[2]) * time.Millisecond,
    }, nil
}

// tokenBucket is one scope of Redis-backed limits, e.g. ticket verification
// at the gates or the auth endpoints.
type tokenBucket struct {
    cfg    config.RateLimitConfig
    rdb    *redis.Client
    logger *slog.Logger
}

// NewTokenBucket returns a middleware that limits requests per key (see
// rateKey) using cfg.  Without Redis, or when disabled, it lets everything
// through; a Redis failure mid-request does the same.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    tb := &tokenBucket{cfg: cfg, rdb: rdb, logger: logger.With("scope", cfg.Scope)}
    return tb.middleware
}

func (tb *tokenBucket) take(c echo.Context, key string) (bucketResult, error) {
    reply, err := takeToken.Run(c.Request().Context(), tb.rdb, []string{key},
        time.Now().UnixMilli(),
        tb.cfg.Capacity,
        tb.cfg.RefillTokens,
        tb.cfg.RefillInterval.Milliseconds(),
        tb.cfg.TTL.Milliseconds(),
    ).Result()
    if err != nil {
        return bucketResult{}, err
    }
    return parseBucketResult(reply)
}

func (tb *tokenBucket) middleware(next echo.HandlerFunc) echo.HandlerFunc {
    return func(c echo.Context) error {
        key := rateKey(tb.cfg, c)
        res, err := tb.take(c, key)
        if err != nil {
            tb.logger.Warn("rate limiter unavailable, allowing request", "key", key, "err", err)
            return next(c)
        }

        h := c.Response().Header()
        h.Set("X-RateLimit-Limit", strconv.Itoa(tb.cfg.Capacity))
        h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
        if res.allowed {
            return next(c)
        }

        secs := res.retryAfterSeconds()
        h.Set("Retry-After", strconv.Itoa(secs))
        tb.logger.Debug("rate limited", "key", key, "retry_after", secs)
        return c.JSON(http.StatusTooManyRequests, echo.Map{
            "error":       "rate limit exceeded",
            "code":        "too_many_requests",
            "retry_after": secs,
        })
    }
}

// rateKey builds the bucket key for the request.  Unknown strategies fall
// back to ip+user+route, the narrowest bucket.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    route := c.Request().Method + " " + c.Path()

    var parts []string
    switch cfg.KeyStrategy {
    case "ip":
        parts = []string{"ip", ip}
    case "user":
        parts = []string{"user", identityKey(c)}
    case "ip_user":
        parts = []string{"ip", ip, "user", identityKey(c)}
    case "ip_route":
        parts = []string{"ip", ip, "route", route}
    default:
        parts = []string{"ip", ip, "user", identityKey(c), "route", route}
    }
    return cfg.Prefix + ":" + strings.Join(parts, ":")
}
