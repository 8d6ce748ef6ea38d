package di

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/entitylist"
	"github.com/goliatone/go-entitylist/invalidation"
	"github.com/goliatone/go-entitylist/store"
)

// Container is the composition root for entity lists.
// It owns the result cache shared by every list it builds, so lists over the
// same query reuse each other's pages, and it fans invalidations out to them.
type Container struct {
	config cache.ResultCacheConfig
	cache  *cache.ResultCache
	logger *zap.Logger

	mu     sync.Mutex
	lists  map[string][]*entitylist.List
	closed bool
}

// Option configures a Container.
type Option func(*containerOptions)

type containerOptions struct {
	logger    *zap.Logger
	cacheOpts []cache.Option
}

// WithLogger sets the logger handed to every list.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCacheOptions passes options to the shared result cache.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *containerOptions) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// NewContainer creates a container whose shared cache uses config.
func NewContainer(config cache.ResultCacheConfig, opts ...Option) (*Container, error) {
	o := containerOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	rc, err := cache.NewResultCache(config, o.cacheOpts...)
	if err != nil {
		return nil, err
	}

	return &Container{
		config: config,
		cache:  rc,
		logger: o.logger,
		lists:  make(map[string][]*entitylist.List),
	}, nil
}

// NewContainerWithDefaults creates a container using the default cache configuration.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(cache.DefaultResultCacheConfig(), opts...)
}

// Cache returns the shared result cache.
func (c *Container) Cache() *cache.ResultCache {
	return c.cache
}

// Config returns the cache configuration used by this container.
func (c *Container) Config() cache.ResultCacheConfig {
	return c.config
}

// Logger returns the container logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// NewList builds a list over st that uses the shared cache and logger.
// The list is closed with the container.
func (c *Container) NewList(st store.Store, cfg entitylist.Config, opts ...entitylist.Option) (*entitylist.List, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("di: container is closed")
	}

	opts = append([]entitylist.Option{
		entitylist.WithCache(c.cache),
		entitylist.WithLogger(c.logger),
	}, opts...)
	opts = append(opts, entitylist.WithOnClose(c.forget))

	l, err := entitylist.New(st, cfg, opts...)
	if err != nil {
		return nil, err
	}
	c.lists[cfg.Collection] = append(c.lists[cfg.Collection], l)
	return l, nil
}

// InvalidateCollection drops the cached entries of collection and reloads the
// lists built over it. It implements invalidation.Invalidator.
func (c *Container) InvalidateCollection(ctx context.Context, collection string) error {
	if err := c.cache.InvalidateCollection(ctx, collection); err != nil {
		return err
	}

	c.mu.Lock()
	lists := append([]*entitylist.List(nil), c.lists[collection]...)
	c.mu.Unlock()

	for _, l := range lists {
		l.Load(ctx, true)
	}
	c.logger.Debug("collection invalidated", zap.String("collection", collection), zap.Int("lists", len(lists)))
	return nil
}

// forget removes a closed list from the registry.
func (c *Container) forget(l *entitylist.List) {
	c.mu.Lock()
	defer c.mu.Unlock()

	collection := l.Spec().Collection
	lists := c.lists[collection]
	for i, other := range lists {
		if other == l {
			lists = append(lists[:i:i], lists[i+1:]...)
			break
		}
	}
	if len(lists) == 0 {
		delete(c.lists, collection)
		return
	}
	c.lists[collection] = lists
}

// Lists returns how many open lists the container tracks for collection.
func (c *Container) Lists(collection string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lists[collection])
}

// NewSubscriber returns a subscriber that applies events from reader to this container.
func (c *Container) NewSubscriber(reader invalidation.Reader) *invalidation.Subscriber {
	return invalidation.NewSubscriber(reader, c, c.logger)
}

// Close closes every list built by the container.
func (c *Container) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var open []*entitylist.List
	for _, lists := range c.lists {
		open = append(open, lists...)
	}
	c.mu.Unlock()

	for _, l := range open {
		l.Close()
	}
	return nil
}

var _ invalidation.Invalidator = (*Container)(nil)
