package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for one sturdyc client.
type Config struct {
	// Capacity is the maximum number of entries. Must be greater than 0.
	Capacity int

	// NumShards splits the key space to reduce lock contention. Must be greater than 0.
	NumShards int

	// TTL is the hard expiry of an entry. Logical staleness is checked by the
	// result cache on top of this, so TTL only needs to be at least as long.
	TTL time.Duration

	// EvictionPercentage is the share of entries dropped when Capacity is
	// reached. Must be between 1-100.
	EvictionPercentage int

	// EarlyRefresh enables background refreshes of hot keys fetched through
	// GetOrFetch. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage remembers keys whose fetch returned sturdyc.ErrNotFound.
	MissingRecordStorage bool

	// EvictionInterval sets how often expired entries are swept. Zero keeps the sturdyc default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig configures early refresh behavior.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns the configuration used for list windows: a small,
// interactive working set that expires after a minute.
func DefaultConfig() Config {
	return Config{
		Capacity:           1000,
		NumShards:          16,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the optional parts of Config to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	case c.NumShards <= 0:
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	case c.TTL <= 0:
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	case c.EvictionPercentage < 1 || c.EvictionPercentage > 100:
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if e := c.EarlyRefresh; e != nil {
		durations := []struct {
			field string
			d     time.Duration
		}{
			{"EarlyRefresh.MinAsyncRefreshTime", e.MinAsyncRefreshTime},
			{"EarlyRefresh.MaxAsyncRefreshTime", e.MaxAsyncRefreshTime},
			{"EarlyRefresh.SyncRefreshTime", e.SyncRefreshTime},
			{"EarlyRefresh.RetryBaseDelay", e.RetryBaseDelay},
		}
		for _, x := range durations {
			if x.d < 0 {
				return &ConfigError{Field: x.field, Message: "must be non-negative"}
			}
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
