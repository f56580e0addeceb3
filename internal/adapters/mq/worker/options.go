package worker

import (
	"time"

	"github.com/pauloqxm/portal-comite/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetries sets how many times a failed sink is retried.
func WithRetries(n int) Option {
	return func(w *InMemoryWorker) {
		if n >= 0 {
			w.retries = n
		}
	}
}

// WithRetryBackoff sets the base delay between retries; attempt n waits n times this.
func WithRetryBackoff(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d >= 0 {
			w.backoff = d
		}
	}
}
