package config

import "time"

// CacheConfig controls the Redis response cache in front of the public offer
// catalog.  Only anonymous GET responses with status 200 are stored.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int  // larger responses are served but not cached
	VaryOnQuery  bool // include the raw query string in the key
}

// LoadCacheConfig reads CACHE_* variables.  The short default TTL bounds
// staleness if a purge after an admin edit fails.
func LoadCacheConfig() CacheConfig {
	ttl := envDur("CACHE_TTL", 30*time.Second)
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          ttl,
		Prefix:       envStr("CACHE_PREFIX", "offers-cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
		VaryOnQuery:  envBool("CACHE_VARY_ON_QUERY", true),
	}
}
