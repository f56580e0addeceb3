package dedupe

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of fingerprints kept in memory.
// maxSize <= 0 disables eviction by size.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithWindow sets how long a fingerprint counts as a duplicate.
// window <= 0 keeps fingerprints until evicted by size.
func WithWindow(window time.Duration) Option {
	return func(d *inMemoryDeduper) {
		d.window = window
	}
}

// WithClock sets the time source.
func WithClock(c clockwork.Clock) Option {
	return func(d *inMemoryDeduper) {
		if c != nil {
			d.clock = c
		}
	}
}
