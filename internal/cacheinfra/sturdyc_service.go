package cacheinfra

import (
	"context"
	"reflect"
	"strings"

	"github.com/viccon/sturdyc"
)

// SturdycService wraps a sturdyc client providing caching behaviour.
// The client is sharded and safe for concurrent use, so the service needs no
// locking of its own.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService creates a new sturdyc cache service adapter.
// It validates the configuration and initializes a sturdyc client with the provided settings.
//
// The constructor translates Config parameters to sturdyc initialization:
// - Capacity, NumShards, TTL, EvictionPercentage are passed to sturdyc.New()
// - Other options are applied via ToSturdycOptions()
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycService{client: client}, nil
}

// validateFetchFn performs comprehensive validation of the fetchFn parameter
// to ensure it matches the expected signature: func(context.Context) (T, error)
func validateFetchFn(fetchFn any) error {
	if fetchFn == nil {
		return &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}

	fnValue := reflect.ValueOf(fetchFn)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return &ConfigError{Field: "fetchFn", Message: "must be a function"}
	}

	if fnType.NumIn() != 1 || fnType.NumOut() != 2 {
		return &ConfigError{Field: "fetchFn", Message: "must have signature func(context.Context) (T, error)"}
	}

	contextType := reflect.TypeOf((*context.Context)(nil)).Elem()
	if !fnType.In(0).Implements(contextType) {
		return &ConfigError{Field: "fetchFn", Message: "first parameter must be context.Context"}
	}

	errorType := reflect.TypeOf((*error)(nil)).Elem()
	if !fnType.Out(1).Implements(errorType) {
		return &ConfigError{Field: "fetchFn", Message: "second return value must be error"}
	}

	return nil
}

// GetOrFetch implements cache.CacheService.GetOrFetch.
// If the key is not found or expired, it executes fetchFn, stores the value
// and returns it. Concurrent callers for the same key share one fetch.
//
// fetchFn must be of type cache.FetchFn[T] (func(context.Context) (T, error)).
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	if err := validateFetchFn(fetchFn); err != nil {
		return nil, err
	}

	typedFetchFn := func(ctx context.Context) (any, error) {
		return callFetchFunctionWithReflection(ctx, fetchFn)
	}

	return s.client.GetOrFetch(ctx, key, typedFetchFn)
}

// callFetchFunctionWithReflection uses reflection to call any function that matches
// the FetchFn[T] signature: func(context.Context) (T, error)
// Note: fetchFn is guaranteed to be valid as it's pre validated by validateFetchFn
func callFetchFunctionWithReflection(ctx context.Context, fetchFn any) (any, error) {
	if fn, ok := fetchFn.(func(context.Context) (any, error)); ok {
		return fn(ctx)
	}

	results := reflect.ValueOf(fetchFn).Call([]reflect.Value{reflect.ValueOf(ctx)})

	var result any
	var err error

	if resultValue := results[0]; resultValue.IsValid() && resultValue.CanInterface() {
		result = resultValue.Interface()
	}

	if errorValue := results[1]; errorValue.IsValid() && !errorValue.IsNil() {
		err = errorValue.Interface().(error)
	}

	return result, err
}

// Get implements cache.CacheService.Get.
// It returns the stored value without consulting the source of truth.
func (s *SturdycService) Get(ctx context.Context, key string) (any, bool) {
	return s.client.Get(key)
}

// Set implements cache.CacheService.Set.
// It stores value under key, replacing any previous value and resetting its TTL.
func (s *SturdycService) Set(ctx context.Context, key string, value any) error {
	s.client.Set(key, value)
	return nil
}

// Delete implements cache.CacheService.Delete.
// Removes a single entry from the cache using the provided key.
func (s *SturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix implements cache.CacheService.DeleteByPrefix.
// Removes all entries whose key starts with prefix. An empty prefix clears the cache.
func (s *SturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Size returns the number of entries currently held.
func (s *SturdycService) Size() int {
	return s.client.Size()
}
