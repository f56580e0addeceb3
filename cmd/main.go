package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/api/option"

	"github.com/pauloqxm/portal-comite/internal/adapters/http/api"
	"github.com/pauloqxm/portal-comite/internal/adapters/http/charts"
	"github.com/pauloqxm/portal-comite/internal/adapters/http/site"
	"github.com/pauloqxm/portal-comite/internal/adapters/http/swagger"
	workerpool "github.com/pauloqxm/portal-comite/internal/adapters/mq/worker"
	"github.com/pauloqxm/portal-comite/internal/adapters/notify"
	repository "github.com/pauloqxm/portal-comite/internal/adapters/repository"
	"github.com/pauloqxm/portal-comite/internal/adapters/sheets"
	app "github.com/pauloqxm/portal-comite/internal/app"
	"github.com/pauloqxm/portal-comite/internal/config"
	"github.com/pauloqxm/portal-comite/pkg/logger"
	"github.com/pauloqxm/portal-comite/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 2 * time.Minute // manual refresh reloads every sheet
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	csrfKeyLen                = 32
)

func main() {
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run() error {
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	// Fill the caches in the background so the first page view is warm.
	go func() {
		if err := svc.Warm(ctx); err != nil {
			log.Warn(ctx, "initial sheet load incomplete", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux, err := newMux(ctx, cfg, svc)
	if err != nil {
		return fmt.Errorf("failed to build routes: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the portal service and its optional contact sinks.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithSources(app.Sources{
			Flows:       app.Source{URL: cfg.FlowsURL, TTL: config.TTL(cfg.FlowsTTLSeconds)},
			Reservoirs:  app.Source{URL: cfg.ReservoirsURL, TTL: config.TTL(cfg.ReservoirsTTLSeconds)},
			Simulations: app.Source{URL: cfg.SimulationsURL, TTL: config.TTL(cfg.SimulationsTTLSeconds)},
			Documents:   app.Source{URL: cfg.DocumentsURL, TTL: config.TTL(cfg.DocumentsTTLSeconds)},
		}),
		app.WithSheetClient(sheets.NewClient(sheets.WithTimeout(cfg.FetchTimeout()))),
		app.WithGeoJSONDir(cfg.GeoJSONDir),
		app.WithRefreshSchedule(cfg.RefreshCron),
		app.WithWorkerCount(cfg.ContactWorkers),
		app.WithQueueSize(cfg.ContactQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
	}

	if cfg.DatabasePath != "" {
		store, err := repository.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithStore(store))
	}

	var sinks []workerpool.Sink
	if cfg.ContactSheetID != "" {
		appender, err := notify.NewSheetAppender(ctx, cfg.ContactSheetID, cfg.ContactSheetRange,
			option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, appender)
	}
	if cfg.TelegramToken != "" {
		bot, err := notify.NewTelegram(cfg.TelegramToken, "", cfg.TelegramChatID)
		if err != nil {
			// The bot API may be unreachable at boot; keep serving without it.
			log.Warn(ctx, "telegram notifications disabled", logger.Error(err))
		} else {
			sinks = append(sinks, bot)
		}
	}
	if len(sinks) > 0 {
		opts = append(opts, app.WithSinks(sinks...))
	}
	return app.New(opts...), nil
}

// newMux registers every route on a fresh mux.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) (*http.ServeMux, error) {
	key := []byte(cfg.CSRFKey)
	if len(key) == 0 {
		key = make([]byte, csrfKeyLen)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		logger.Get().Warn(ctx, "csrf_key not set; contact forms will not survive a restart")
	}
	pages, err := site.NewHandler(svc, site.Options{CSRFKey: key, Secure: cfg.SecureCookies})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(mux)
	charts.NewHandler(svc).Register(mux)
	pages.Register(ctx, mux)
	return mux, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics copies the service stats into the gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
		if size, ok := stats["queueSize"].(int); ok && size > 0 {
			metrics.UpdateQueueCapacity(size)
			metrics.UpdateQueueUtilization(float64(queueLen) / float64(size))
		}
	}

	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
