// Package worker delivers queued contact messages to their sinks.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/pauloqxm/portal-comite/internal/adapters/mq/queue"
	"github.com/pauloqxm/portal-comite/pkg/logger"
	"github.com/pauloqxm/portal-comite/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultRetries      = 2
	defaultRetryBackoff = 500 * time.Millisecond
	poolShutdownTimeout = 30 * time.Second
)

// Message abstracts what workers read off the queue.
type Message = queue.Message

// Sink is one destination of a contact message (database, spreadsheet, chat).
type Sink interface {
	Name() string
	Deliver(ctx context.Context, m Message) error
}

// Queue defines how workers receive messages.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Message
}

// Worker delivers messages until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the message in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	sinks   []Sink
	name    string
	retries int
	backoff time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sinks []Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		sinks:    sinks,
		name:     "worker",
		retries:  defaultRetries,
		backoff:  defaultRetryBackoff,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	messages := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			if err := w.process(ctx, m); err != nil {
				w.logger.Error(ctx, "contact delivery incomplete",
					logger.String("id", m.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process hands the message to every sink. A failing sink does not stop
// the others; their errors are joined.
func (w *InMemoryWorker) process(ctx context.Context, m Message) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	var errs []error
	for _, s := range w.sinks {
		if err := w.deliver(ctx, s, m); err != nil {
			metrics.RecordContactDeliveryFailure(s.Name())
			metrics.RecordErrorByComponent("worker", s.Name()+"_error")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		metrics.RecordContactDelivered(s.Name())
		w.logger.Debug(ctx, "contact delivered", logger.String("id", m.ID), logger.String("sink", s.Name()))
	}
	return errors.Join(errs...)
}

func (w *InMemoryWorker) deliver(ctx context.Context, s Sink, m Message) error { //nolint:gocritic // hugeParam
	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff * time.Duration(attempt)):
			}
		}
		if err = s.Deliver(ctx, m); err == nil {
			return nil
		}
		w.logger.Warn(ctx, "sink delivery failed",
			logger.String("sink", s.Name()),
			logger.String("id", m.ID),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}
	return err
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive count uses runtime.NumCPU.
func NewPool(workerCount int, q Queue, sinks []Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, sinks, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
