package service

import (
	"time"

	"github.com/jonboulle/clockwork"

	workerpool "github.com/pauloqxm/portal-comite/internal/adapters/mq/worker"
	repository "github.com/pauloqxm/portal-comite/internal/adapters/repository"
	"github.com/pauloqxm/portal-comite/internal/adapters/sheets"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

// Source locates one published spreadsheet and how long it stays cached.
type Source struct {
	URL string
	TTL time.Duration
}

// Sources are the four spreadsheets the portal reads.
type Sources struct {
	Flows       Source
	Reservoirs  Source
	Simulations Source
	Documents   Source
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSources sets the spreadsheet URLs and TTLs.
func WithSources(src Sources) Option {
	return func(s *Service) { s.sources = src }
}

// WithSheetClient replaces the spreadsheet HTTP client.
func WithSheetClient(c *sheets.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithGeoJSONDir sets the directory holding the layer files.
func WithGeoJSONDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.geojsonDir = dir
		}
	}
}

// WithRefreshSchedule sets the cron spec of the background refresh. Empty disables it.
func WithRefreshSchedule(spec string) Option {
	return func(s *Service) { s.refreshSpec = spec }
}

// WithRefreshTimeout bounds one scheduled refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// WithWorkerCount sets the number of contact delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued contact messages.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the duplicate-submission cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupeWindow sets how long an identical submission counts as a duplicate.
func WithDedupeWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.dedupeWindow = d
		}
	}
}

// WithStore sets the contact store. A store that is also a worker sink
// receives every accepted message.
func WithStore(store repository.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithSinks adds contact delivery sinks (spreadsheet, chat).
func WithSinks(sinks ...workerpool.Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithRetryBackoff sets the delay between sink retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.retryBackoff = d
		}
	}
}

// WithClock sets the clock used for cache expiry and receipts.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
