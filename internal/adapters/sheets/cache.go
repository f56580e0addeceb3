package sheets

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pauloqxm/portal-comite/pkg/logger"
	"github.com/pauloqxm/portal-comite/pkg/metrics"
)

// Loader produces a fresh dataset value.
type Loader[T any] func(ctx context.Context) (T, error)

// Warmer is a cache the refresher can reload.
type Warmer interface {
	Name() string
	Refresh(ctx context.Context) error
	Invalidate()
}

type cacheConfig struct {
	clock clockwork.Clock
}

// CacheOption configures a Cached value.
type CacheOption func(*cacheConfig)

// WithClock sets the clock used for expiry.
func WithClock(c clockwork.Clock) CacheOption {
	return func(cfg *cacheConfig) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// Cached holds one dataset for ttl. Concurrent readers of an expired value
// wait for a single load.
type Cached[T any] struct {
	name  string
	ttl   time.Duration
	load  Loader[T]
	clock clockwork.Clock

	mu        sync.Mutex
	value     T
	fetchedAt time.Time
	valid     bool

	logger logger.Logger
}

// NewCached wraps load with a TTL cache named after its dataset.
func NewCached[T any](name string, ttl time.Duration, load Loader[T], opts ...CacheOption) *Cached[T] {
	cfg := cacheConfig{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cached[T]{
		name:   name,
		ttl:    ttl,
		load:   load,
		clock:  cfg.clock,
		logger: logger.Get().Named("cache"),
	}
}

// Name returns the dataset name.
func (c *Cached[T]) Name() string { return c.name }

// Get returns the cached value, loading it when missing or expired. A
// failed load is returned as is and nothing is cached.
func (c *Cached[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.clock.Since(c.fetchedAt) < c.ttl {
		metrics.RecordCacheHit(c.name)
		return c.value, nil
	}
	metrics.RecordCacheMiss(c.name)
	return c.loadLocked(ctx)
}

// Refresh reloads the value regardless of its age. On failure the previous
// value stays in place.
func (c *Cached[T]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.loadLocked(ctx)
	return err
}

func (c *Cached[T]) loadLocked(ctx context.Context) (T, error) {
	v, err := c.load(ctx)
	if err != nil {
		c.logger.Warn(ctx, "dataset load failed", logger.String("dataset", c.name), logger.Error(err))
		var zero T
		return zero, err
	}
	c.value = v
	c.fetchedAt = c.clock.Now()
	c.valid = true
	return v, nil
}

// Invalidate drops the cached value.
func (c *Cached[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid {
		metrics.RecordCacheInvalidation(c.name)
	}
	var zero T
	c.value = zero
	c.valid = false
}

// FetchedAt reports when the value was loaded; ok is false when empty.
func (c *Cached[T]) FetchedAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt, c.valid
}
