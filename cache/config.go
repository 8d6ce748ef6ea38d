package cache

import (
	"time"

	"github.com/goliatone/go-entitylist/internal/cacheinfra"
)

const (
	// DefaultListTTL bounds the age of a cached page window.
	DefaultListTTL = 60 * time.Second
	// DefaultSearchTTL bounds the age of cached search results. Search results
	// go stale faster relative to live edits, so they get a shorter TTL.
	DefaultSearchTTL = 30 * time.Second
)

// Config sizes one of the stores behind a ResultCache. TTL is how long
// sturdyc keeps an entry at all; staleness of list and search entries is
// decided separately from Entry.FetchedAt.
type Config struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	// EvictionInterval enables background eviction of expired entries when positive.
	EvictionInterval time.Duration
}

// ResultCacheConfig configures the two stores behind a ResultCache.
type ResultCacheConfig struct {
	Lists    Config
	Searches Config
}

// DefaultConfig returns the sturdyc defaults.
func DefaultConfig() Config {
	return fromInternal(cacheinfra.DefaultConfig())
}

// DefaultListConfig returns the configuration used for page windows and counts.
func DefaultListConfig() Config {
	cfg := DefaultConfig()
	cfg.TTL = DefaultListTTL
	return cfg
}

// DefaultSearchConfig returns the configuration used for search results.
func DefaultSearchConfig() Config {
	cfg := DefaultListConfig()
	cfg.TTL = DefaultSearchTTL
	return cfg
}

// DefaultResultCacheConfig returns list and search defaults.
func DefaultResultCacheConfig() ResultCacheConfig {
	return ResultCacheConfig{
		Lists:    DefaultListConfig(),
		Searches: DefaultSearchConfig(),
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// Validate checks both configurations.
func (c ResultCacheConfig) Validate() error {
	if err := c.Lists.Validate(); err != nil {
		return err
	}
	return c.Searches.Validate()
}

// NewCacheService returns a sturdyc backed CacheService.
func NewCacheService(cfg Config) (CacheService, error) {
	svc, err := cacheinfra.NewSturdycService(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c Config) toInternal() cacheinfra.Config {
	cfg := cacheinfra.DefaultConfig()
	cfg.Capacity = c.Capacity
	cfg.NumShards = c.NumShards
	cfg.TTL = c.TTL
	cfg.EvictionPercentage = c.EvictionPercentage
	cfg.EvictionInterval = c.EvictionInterval
	return cfg
}

func fromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
