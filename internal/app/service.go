package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"telemetry/internal/api"
	"telemetry/internal/clock"
	"telemetry/internal/config"
	"telemetry/internal/ingest"
	"telemetry/internal/logging"
	"telemetry/internal/mockgen"
	"telemetry/internal/notify"
	"telemetry/internal/store"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable telemetry service.
type Service struct {
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	store     *store.Store
	manager   *Manager
	httpSrv   *http.Server
	nc        *nats.Conn
	natsSub   interface{ Close() error }
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return newService(cfg, logger, closeLog, clk)
}

// newService wires components from an already validated config.
func newService(cfg config.Config, logger *slog.Logger, closeLog func(), clk clock.Clock) (*Service, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	service := &Service{
		cfg:      cfg,
		logger:   logger.With("service", cfg.Service.Name),
		closeLog: closeLog,
		clock:    clk,
		store: store.New(store.Options{
			Clock:      clk,
			MaxMetrics: cfg.Retention.MaxMetrics,
			MaxLogs:    cfg.Retention.MaxLogs,
			MaxAge:     cfg.Retention.MaxAge(),
			Rules:      cfg.SeedRules(),
			NewID:      uuid.NewString,
		}),
	}

	if err := service.connectNATS(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	publisher, err := service.buildPublisher()
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	service.manager = NewManager(service.store, publisher, service.logger, clk)
	service.buildHTTPServer()
	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	return service, nil
}

// Handler returns the HTTP router.
func (s *Service) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run starts service lifecycle and blocks until ctx is cancelled or a shutdown signal arrives.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.HTTP.Listen)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("listen %s: %w", s.cfg.HTTP.Listen, err)
	}
	return s.Serve(ctx, listener)
}

// Serve runs HTTP server on listener plus the evaluation loop.
// Params: root context and bound listener.
// Returns: first component error (nil on graceful stop).
func (s *Service) Serve(ctx context.Context, listener net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.readyFlag.Store(true)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.logger.Info("http server starting", "listen", listener.Addr().String())
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		interval := time.Duration(s.cfg.Service.EvaluateIntervalSec) * time.Second
		return s.manager.Run(groupCtx, interval)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return s.shutdown()
	})

	s.logger.Info("service ready", "mode", s.cfg.Service.Mode, "rules", len(s.store.Rules()))
	return group.Wait()
}

// Ready reports readiness probe state.
func (s *Service) Ready() bool {
	return s.readyFlag.Load()
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: joined close errors.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			errs = append(errs, fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	if err := s.manager.Close(); err != nil {
		s.logger.Error("notification publisher close failed", "error", err.Error())
		errs = append(errs, fmt.Errorf("publisher close: %w", err))
	}
	if s.nc != nil {
		s.nc.Close()
	}
	s.logger.Info("service stopped")
	if s.closeLog != nil {
		s.closeLog()
	}
	return errors.Join(errs...)
}

// cleanupInitResources closes partially initialized resources on startup failures.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.manager != nil {
		_ = s.manager.Close()
		s.manager = nil
	}
	if s.nc != nil {
		s.nc.Close()
		s.nc = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires the API router.
func (s *Service) buildHTTPServer() {
	var generator api.Generator
	if s.cfg.HTTP.MockGeneratorEnabled() {
		generator = mockgen.New(nil)
	}
	router := api.NewRouter(api.Options{
		HTTP:      s.cfg.HTTP,
		Store:     s.store,
		Logger:    s.logger,
		Generator: generator,
		Ready:     s.Ready,
		Clock:     s.clock,
	})
	s.httpSrv = &http.Server{
		Addr:              s.cfg.HTTP.Listen,
		Handler:           router,
		ReadHeaderTimeout: time.Duration(s.cfg.HTTP.ReadHeaderTimeout) * time.Second,
	}
}

// connectNATS opens the shared connection when any NATS feature is enabled.
func (s *Service) connectNATS() error {
	if isSingleMode(s.cfg) || (!s.cfg.NATS.Ingest.Enabled && !s.cfg.NATS.Alerts.Enabled) {
		return nil
	}
	nc, err := nats.Connect(strings.Join(s.cfg.NATS.URL, ","),
		nats.Name(s.cfg.Service.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("nats disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			s.logger.Info("nats reconnected", "url", conn.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	s.nc = nc
	return nil
}

// buildNATSSubscriber starts JetStream ingest when enabled.
func (s *Service) buildNATSSubscriber() error {
	if s.nc == nil || !s.cfg.NATS.Ingest.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.nc, s.cfg.NATS.Ingest, s.store, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// buildPublisher assembles notification channels from config.
// Params: none.
// Returns: fanout publisher (log channel always present) or setup error.
func (s *Service) buildPublisher() (notify.Publisher, error) {
	publishers := []notify.Publisher{notify.NewLogPublisher(s.logger)}
	closeAll := func() {
		for _, publisher := range publishers {
			_ = publisher.Close()
		}
	}

	notifyCfg := s.cfg.Notify
	if notifyCfg.Webhook.Enabled {
		webhook := notify.NewWebhookPublisher(notifyCfg.Webhook)
		publishers = append(publishers, notify.WithRetry(webhook, notifyCfg.Webhook.Retry, s.logger))
	}
	if notifyCfg.Telegram.Enabled {
		telegram, err := notify.NewTelegramPublisher(notifyCfg.Telegram)
		if err != nil {
			closeAll()
			return nil, err
		}
		publishers = append(publishers, notify.WithRetry(telegram, notifyCfg.Telegram.Retry, s.logger))
	}
	if s.nc != nil && s.cfg.NATS.Alerts.Enabled {
		natsPub, err := notify.NewNATSPublisher(s.nc, s.cfg.NATS.Alerts)
		if err != nil {
			closeAll()
			return nil, err
		}
		publishers = append(publishers, natsPub)
	}

	fanout := notify.NewFanout(s.logger, publishers...)
	s.logger.Info("notification channels configured", "channels", fanout.Channels())
	return fanout, nil
}

func isSingleMode(cfg config.Config) bool {
	return config.NormalizeServiceMode(cfg.Service.Mode) == config.ServiceModeSingle
}
