package config

import "time"

// CacheConfig controls the Redis response cache in front of the public
// product listing.  Only GET responses with status 200 are stored; entries
// live for TTL or until an admin product write purges them.  Bodies larger
// than MaxBodyBytes pass through uncached.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", 5*time.Minute),
		Prefix:       envStr("CACHE_PREFIX", "storefront"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
