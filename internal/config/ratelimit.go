package config

import (
	"strings"
	"time"
)

// Rate-limit scopes.  Each scope has its own buckets and may override the
// shared RATE_LIMIT_* settings with RATE_LIMIT_<SCOPE>_*.
const (
	ScopeVerify = "verify"
	ScopeAuth   = "auth"
)

// RateLimitConfig drives one Redis token bucket family.  Capacity tokens are
// available up front and RefillTokens come back every RefillInterval.
type RateLimitConfig struct {
	Scope          string
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip | user | ip_user | ip_route
	Prefix         string
}

// scopeDefaults keeps verify generous for scanning queues at the gates and
// auth tight against credential stuffing.
var scopeDefaults = map[string]struct {
	capacity int
	interval time.Duration
}{
	ScopeVerify: {capacity: 30, interval: time.Second},
	ScopeAuth:   {capacity: 10, interval: 6 * time.Second},
}

// LoadRateLimitConfig reads the settings for scope.
func LoadRateLimitConfig(scope string) RateLimitConfig {
	def, ok := scopeDefaults[scope]
	if !ok {
		def = scopeDefaults[ScopeVerify]
	}
	up := "RATE_LIMIT_" + strings.ToUpper(scope) + "_"
	pick := func(name string) string { return up + name }

	cfg := RateLimitConfig{
		Scope:          scope,
		Enabled:        envBool(pick("ENABLED"), envBool("RATE_LIMIT_ENABLED", true)),
		Capacity:       envInt(pick("CAPACITY"), envInt("RATE_LIMIT_CAPACITY", def.capacity)),
		RefillTokens:   envInt(pick("REFILL_TOKENS"), envInt("RATE_LIMIT_REFILL_TOKENS", 1)),
		RefillInterval: envDur(pick("REFILL_INTERVAL"), envDur("RATE_LIMIT_REFILL_INTERVAL", def.interval)),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    strings.ToLower(envStr(pick("KEY_STRATEGY"), envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"))),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl") + ":" + scope,
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	// a bucket must outlive a full refill cycle or it resets to capacity early
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}
