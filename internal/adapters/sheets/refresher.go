package sheets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pauloqxm/portal-comite/pkg/logger"
	"github.com/pauloqxm/portal-comite/pkg/metrics"
)

// Refresher re-warms every dataset on a cron schedule.
type Refresher struct {
	spec    string
	targets []Warmer
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	lastRun time.Time
	lastErr error

	logger logger.Logger
}

// NewRefresher validates the standard five-field cron spec.
func NewRefresher(spec string, timeout time.Duration, targets ...Warmer) (*Refresher, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("sheets: refresh schedule %q: %w", spec, err)
	}
	return &Refresher{
		spec:    spec,
		targets: targets,
		cron:    cron.New(),
		timeout: timeout,
		logger:  logger.Get().Named("refresher"),
	}, nil
}

// Start schedules the job. The returned error only reports a bad schedule.
func (r *Refresher) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if err := r.RefreshAll(runCtx); err != nil {
			r.logger.Warn(runCtx, "scheduled refresh incomplete", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("sheets: schedule refresh: %w", err)
	}
	r.cron.Start()
	r.logger.Info(ctx, "dataset refresh scheduled", logger.String("schedule", r.spec), logger.Int("datasets", len(r.targets)))
	return nil
}

// Stop waits for a running job to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

// RefreshAll reloads every dataset and joins the failures.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, t := range r.targets {
		if err := t.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	err := errors.Join(errs...)
	metrics.RecordRefreshRun(err != nil)

	r.mu.Lock()
	r.lastRun, r.lastErr = time.Now(), err
	r.mu.Unlock()
	return err
}

// LastRun reports the time and outcome of the latest refresh.
func (r *Refresher) LastRun() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastErr
}
