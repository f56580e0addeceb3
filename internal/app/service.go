// Package service wires the portal together: cached spreadsheet datasets,
// GeoJSON layers, the scheduled refresh and the contact pipeline. The HTTP
// layer depends only on its methods.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pauloqxm/portal-comite/internal/adapters/geojson"
	contactqueue "github.com/pauloqxm/portal-comite/internal/adapters/mq/queue"
	workerpool "github.com/pauloqxm/portal-comite/internal/adapters/mq/worker"
	repository "github.com/pauloqxm/portal-comite/internal/adapters/repository"
	"github.com/pauloqxm/portal-comite/internal/adapters/sheets"
	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	"github.com/pauloqxm/portal-comite/internal/domain/dedupe"
	"github.com/pauloqxm/portal-comite/internal/domain/documents"
	"github.com/pauloqxm/portal-comite/internal/domain/flow"
	"github.com/pauloqxm/portal-comite/internal/domain/geo"
	"github.com/pauloqxm/portal-comite/internal/domain/reservoir"
	"github.com/pauloqxm/portal-comite/internal/domain/simulation"
	"github.com/pauloqxm/portal-comite/pkg/logger"
	"github.com/pauloqxm/portal-comite/pkg/metrics"
)

// Dataset names used in logs, metrics and the refresh API.
const (
	DatasetFlows       = "flows"
	DatasetReservoirs  = "reservoirs"
	DatasetSimulations = "simulations"
	DatasetDocuments   = "documents"
)

const (
	defaultQueueSize      = 1000
	defaultDedupeSize     = 10000
	defaultDedupeWindow   = 24 * time.Hour
	defaultRefreshTimeout = 2 * time.Minute
	stopTimeout           = 30 * time.Second
)

// Service implements the API dependencies of the portal.
type Service struct {
	mu sync.RWMutex

	// Configuration
	sources        Sources
	geojsonDir     string
	refreshSpec    string
	refreshTimeout time.Duration
	workerCount    int
	queueSize      int
	dedupeSize     int
	dedupeWindow   time.Duration
	retryBackoff   time.Duration
	clock          clockwork.Clock

	// Components
	client      *sheets.Client
	flows       *sheets.Cached[*flow.Dataset]
	reservoirs  *sheets.Cached[[]reservoir.Reading]
	simulations *sheets.Cached[[]simulation.Row]
	documents   *sheets.Cached[[]documents.Document]
	layers      *geojson.Loader
	refresher   *sheets.Refresher
	deduper     dedupe.Deduper
	queue       contactqueue.Queue
	pool        *workerpool.Pool
	store       repository.Store
	sinks       []workerpool.Sink

	started bool
	logger  logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		geojsonDir:     "geojson",
		refreshTimeout: defaultRefreshTimeout,
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		dedupeWindow:   defaultDedupeWindow,
		retryBackoff:   -1,
		clock:          clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cached[T any](s *Service, name string, src Source, parse func(ctx context.Context, url string) (T, error)) *sheets.Cached[T] {
	return sheets.NewCached(name, src.TTL, func(ctx context.Context) (T, error) {
		return parse(ctx, src.URL)
	}, sheets.WithClock(s.clock))
}

func (s *Service) buildDatasets() {
	fetch := s.client.Fetch
	s.flows = cached(s, DatasetFlows, s.sources.Flows, func(ctx context.Context, url string) (*flow.Dataset, error) {
		t, err := fetch(ctx, DatasetFlows, url)
		if err != nil {
			return nil, err
		}
		return flow.Parse(t)
	})
	s.reservoirs = cached(s, DatasetReservoirs, s.sources.Reservoirs, func(ctx context.Context, url string) ([]reservoir.Reading, error) {
		t, err := fetch(ctx, DatasetReservoirs, url)
		if err != nil {
			return nil, err
		}
		return reservoir.Parse(t)
	})
	s.simulations = cached(s, DatasetSimulations, s.sources.Simulations, func(ctx context.Context, url string) ([]simulation.Row, error) {
		t, err := fetch(ctx, DatasetSimulations, url)
		if err != nil {
			return nil, err
		}
		return simulation.Parse(t)
	})
	s.documents = cached(s, DatasetDocuments, s.sources.Documents, func(ctx context.Context, url string) ([]documents.Document, error) {
		t, err := fetch(ctx, DatasetDocuments, url)
		if err != nil {
			return nil, err
		}
		return documents.Parse(t), nil
	})
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting portal service...")

	if s.client == nil {
		s.client = sheets.NewClient()
	}
	s.buildDatasets()
	s.layers = geojson.NewLoader(s.geojsonDir)

	if s.refreshSpec != "" {
		r, err := sheets.NewRefresher(s.refreshSpec, s.refreshTimeout, s.flows, s.reservoirs, s.simulations, s.documents)
		if err != nil {
			return err
		}
		if err := r.Start(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		s.refresher = r
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithWindow(s.dedupeWindow),
		dedupe.WithClock(s.clock),
	)
	q := contactqueue.NewInMemoryQueue(
		contactqueue.WithCapacity(s.queueSize),
		contactqueue.WithBufferSize(s.queueSize),
	)
	s.queue = q

	sinks := make([]workerpool.Sink, 0, len(s.sinks)+1)
	if sink, ok := s.store.(workerpool.Sink); ok {
		sinks = append(sinks, sink)
	}
	sinks = append(sinks, s.sinks...)
	var wopts []workerpool.Option
	if s.retryBackoff >= 0 {
		wopts = append(wopts, workerpool.WithRetryBackoff(s.retryBackoff))
	}
	s.pool = workerpool.NewPool(s.workerCount, q, sinks, wopts...)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	names := make([]string, 0, len(sinks))
	for _, sink := range sinks {
		names = append(names, sink.Name())
	}
	s.logger.Info(ctx, "portal service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Any("sinks", names),
		logger.String("refresh", s.refreshSpec),
	)
	return nil
}

// Stop drains the contact queue and releases resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping portal service...")

	if s.refresher != nil {
		s.refresher.Stop()
		s.refresher = nil
	}
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "contact workers did not drain", logger.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing contact store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "portal service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Flows returns the operated-flow dataset.
func (s *Service) Flows(ctx context.Context) (*flow.Dataset, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.flows.Get(ctx)
}

// Reservoirs returns the monitored reservoir readings.
func (s *Service) Reservoirs(ctx context.Context) ([]reservoir.Reading, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.reservoirs.Get(ctx)
}

// Simulations returns the simulation rows.
func (s *Service) Simulations(ctx context.Context) ([]simulation.Row, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.simulations.Get(ctx)
}

// Documents returns the official documents.
func (s *Service) Documents(ctx context.Context) ([]documents.Document, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.documents.Get(ctx)
}

// Layer returns a GeoJSON layer; nil when its file is absent.
func (s *Service) Layer(ctx context.Context, name string) (*geo.FeatureCollection, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.layers.Layer(ctx, name)
}

func (s *Service) warmers() []sheets.Warmer {
	return []sheets.Warmer{s.flows, s.reservoirs, s.simulations, s.documents}
}

// Refresh drops every cached dataset and reloads them. Datasets that fail
// stay empty and are fetched again on the next read.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.running(); err != nil {
		return err
	}
	var errs []error
	for _, w := range s.warmers() {
		w.Invalidate()
		if err := w.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	err := errors.Join(errs...)
	metrics.RecordRefreshRun(err != nil)
	s.logger.Info(ctx, "datasets refreshed on request", logger.Bool("failed", err != nil))
	return err
}

// Warm loads every dataset and layer once, logging failures.
func (s *Service) Warm(ctx context.Context) error {
	if err := s.running(); err != nil {
		return err
	}
	var errs []error
	for _, w := range s.warmers() {
		if err := w.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	n, err := s.layers.LoadAll(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	s.logger.Info(ctx, "datasets warmed", logger.Int("layers", n), logger.Int("failures", len(errs)))
	return errors.Join(errs...)
}

// SubmitContact validates a form, drops duplicates and queues it for
// delivery. Invalid forms return a *contact.ValidationError; a full queue
// returns ErrBackpressure.
func (s *Service) SubmitContact(ctx context.Context, form contact.Form) (contact.Receipt, error) { //nolint:gocritic // hugeParam
	if err := s.running(); err != nil {
		return contact.Receipt{}, err
	}
	form, err := form.Validate()
	if err != nil {
		metrics.RecordContactRejected("validation")
		return contact.Receipt{}, err
	}

	fp := form.Fingerprint()
	if s.deduper.SeenAndRecord(ctx, fp) {
		metrics.RecordContactDuplicate()
		s.logger.Debug(ctx, "duplicate contact submission", logger.String("fingerprint", fp[:12]))
		return contact.Receipt{Status: contact.StatusDuplicate, Message: contact.SuccessText}, nil
	}

	m := contact.Message{ID: uuid.NewString(), ReceivedAt: s.clock.Now().UTC(), Form: form}
	if !s.queue.Enqueue(ctx, m) {
		s.deduper.Unrecord(ctx, fp)
		metrics.RecordContactRejected("backpressure")
		return contact.Receipt{}, ErrBackpressure
	}
	metrics.RecordContactAccepted()
	s.logger.Info(ctx, "contact accepted", logger.String("id", m.ID), logger.String("kind", m.Kind))
	return contact.Receipt{ID: m.ID, Status: contact.StatusAccepted, Message: contact.SuccessText}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.queue.Len(ctx)
	stats["dedupeEntries"] = s.deduper.Size()
	datasets := map[string]interface{}{}
	for _, w := range s.warmers() {
		entry := map[string]interface{}{"cached": false}
		if fa, ok := w.(interface{ FetchedAt() (time.Time, bool) }); ok {
			if at, valid := fa.FetchedAt(); valid {
				entry["cached"] = true
				entry["fetchedAt"] = at.UTC().Format(time.RFC3339)
			}
		}
		datasets[w.Name()] = entry
	}
	stats["datasets"] = datasets
	if s.refresher != nil {
		if at, err := s.refresher.LastRun(); !at.IsZero() {
			stats["lastRefresh"] = at.UTC().Format(time.RFC3339)
			stats["lastRefreshOK"] = err == nil
		}
	}
	if s.store != nil {
		if n, err := s.store.Count(ctx); err == nil {
			stats["storedContacts"] = n
		}
	}
	return stats
}
