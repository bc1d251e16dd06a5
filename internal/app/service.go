package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"providence/internal/clock"
	"providence/internal/config"
	"providence/internal/escalate"
	"providence/internal/history"
	"providence/internal/ingest"
	"providence/internal/intake"
	"providence/internal/logging"
	"providence/internal/metrics"
	"providence/internal/notify"
	"providence/internal/push"
	"providence/internal/sla"
	"providence/internal/store"
	"providence/internal/topology"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable monitoring backend.
type Service struct {
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func()
	clock      clock.Clock
	metrics    *metrics.Metrics
	store      store.Store
	registry   *topology.Registry
	publisher  push.Publisher
	dispatcher *notify.Dispatcher
	processor  *intake.Processor
	scanner    *escalate.Scanner
	slaRunner  *sla.Runner
	httpSrv    *http.Server
	natsSub    interface{ Close() error }
}

// NewService builds a service instance from a config source.
// Params: startup context, config source, and clock implementation.
// Returns: initialized service or setup error.
func NewService(ctx context.Context, source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		closeLog()
		return nil, err
	}

	registry := topology.NewRegistry()
	if err := registry.Load(ctx, st); err != nil {
		_ = st.Close()
		closeLog()
		return nil, fmt.Errorf("load topology: %w", err)
	}

	publisher, err := buildPublisher(cfg)
	if err != nil {
		_ = st.Close()
		closeLog()
		return nil, err
	}

	m := metrics.New()
	dispatcher := notify.NewDispatcher(cfg.Notify.DefaultIntervalSec, buildSenders(cfg.Notify), clk, logger, m)
	recorder := history.NewRecorder(st, cfg.Service.CommitAttempts, logger)
	processor := intake.NewProcessor(registry, st, recorder, dispatcher, publisher, clk, logger, m)
	scanner := escalate.NewScanner(registry, st, recorder, dispatcher, publisher, clk, logger, m)
	slaRunner := sla.NewRunner(st, publisher, clk, logger, m, cfg.Service.SlaWorkers, cfg.SlaPollInterval())

	service := &Service{
		cfg:        cfg,
		logger:     logger,
		closeLog:   closeLog,
		clock:      clk,
		metrics:    m,
		store:      st,
		registry:   registry,
		publisher:  publisher,
		dispatcher: dispatcher,
		processor:  processor,
		scanner:    scanner,
		slaRunner:  slaRunner,
	}

	if cfg.Ingest.HTTP.Enabled {
		api := ingest.NewAPI(processor, registry, st, publisher, clk, logger, cfg.Ingest.HTTP.MaxBodyBytes)
		service.httpSrv = &http.Server{
			Addr:              cfg.Ingest.HTTP.Listen,
			Handler:           ingest.NewRouter(cfg.Ingest.HTTP, api, m),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return service, nil
}

// Run starts background loops and blocks until shutdown.
// Params: root context for the service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	if s.httpSrv != nil {
		go func() {
			s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
			err := s.httpSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	if s.cfg.Ingest.NATS.Enabled {
		subscriber, err := ingest.NewNATSSubscriber(shutdownCtx, s.cfg.Ingest.NATS, s.processor, s.logger)
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("start nats intake: %w", err)
		}
		s.natsSub = subscriber
		s.logger.Info("nats intake started",
			"subject", s.cfg.Ingest.NATS.Subject, "group", s.cfg.Ingest.NATS.DeliverGroup)
	}

	go s.slaRunner.Run(shutdownCtx)
	go s.runTicker(shutdownCtx, s.cfg.EscalationScanInterval(), s.escalationPass)
	go s.runTicker(shutdownCtx, time.Second, s.notificationPass)
	go s.runTicker(shutdownCtx, s.cfg.HousekeepingInterval(), s.housekeepingPass)

	s.logger.Info("service started", "name", s.cfg.Service.Name,
		"storage", s.cfg.Storage.Mode, "environments", len(s.registry.SubscriptionIDs()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// runTicker runs one background pass on a fixed cadence until cancellation.
// Params: loop context, interval, and the pass body.
// Returns: on context cancellation.
func (s *Service) runTicker(ctx context.Context, interval time.Duration, pass func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

// escalationPass runs one escalation scan over all environments.
func (s *Service) escalationPass(ctx context.Context) {
	if escalated := s.scanner.ScanOnce(ctx); escalated > 0 {
		s.logger.Info("escalation scan", "escalated", escalated)
	}
}

// notificationPass flushes notification batches whose interval elapsed.
func (s *Service) notificationPass(ctx context.Context) {
	s.dispatcher.DispatchDue(ctx)
}

// housekeepingPass purges closed history older than the retention window.
func (s *Service) housekeepingPass(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.HistoryRetention())
	purged, err := s.store.PurgeHistory(ctx, cutoff)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("history purge failed", "error", err.Error())
		}
		return
	}
	if purged > 0 {
		s.metrics.HistoryPurgedRows.Add(float64(purged))
		s.logger.Info("history purged", "rows", purged, "before", cutoff)
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown failed", "error", err.Error())
			markErr(fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats intake close failed", "error", err.Error())
			markErr(fmt.Errorf("nats intake close: %w", err))
		}
	}

	// Pending notification batches go out before the senders disappear.
	if flushed := s.dispatcher.Flush(ctx); flushed > 0 {
		s.logger.Info("notification batches flushed on shutdown", "batches", flushed)
	}

	if err := s.publisher.Close(); err != nil {
		s.logger.Error("push publisher close failed", "error", err.Error())
		markErr(fmt.Errorf("push publisher close: %w", err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		markErr(fmt.Errorf("store close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// buildStore creates the persistence backend from config.
// Params: startup context and config snapshot.
// Returns: selected store backend.
func buildStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Storage.Mode {
	case config.StorageModeMemory:
		return store.NewMemoryStore(), nil
	case config.StorageModePostgres:
		return store.NewPostgresStore(ctx, cfg.Storage.Postgres.ConnString())
	default:
		return nil, fmt.Errorf("unsupported storage mode %q", cfg.Storage.Mode)
	}
}

// buildPublisher creates the frontend push channel when enabled.
// Params: config snapshot.
// Returns: NATS publisher or no-op fallback.
func buildPublisher(cfg config.Config) (push.Publisher, error) {
	if !cfg.Push.Enabled {
		return push.Nop{}, nil
	}
	publisher, err := push.NewNATSPublisher(cfg.Push)
	if err != nil {
		return nil, fmt.Errorf("start push publisher: %w", err)
	}
	return publisher, nil
}

// buildSenders assembles the enabled notification channels.
// Params: notify config.
// Returns: sender list; empty when every channel is disabled.
func buildSenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.Email.Enabled {
		senders = append(senders, notify.NewEmailSender(cfg.Email))
	}
	if cfg.Telegram.Enabled {
		senders = append(senders, notify.NewTelegramSender(cfg.Telegram))
	}
	return senders
}
