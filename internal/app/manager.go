package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"telemetry/internal/clock"
	"telemetry/internal/domain"
	"telemetry/internal/metrics"
	"telemetry/internal/notify"
)

// AlertSource is the store surface used by periodic evaluation.
type AlertSource interface {
	ActiveAlerts() []domain.Alert
	Compact(now time.Time) (int, int)
}

// Manager coordinates periodic alert evaluation, retention compaction, and transition notifications.
// Params: alert source, publisher, logger, and clock.
// Returns: periodic worker entrypoint.
type Manager struct {
	source    AlertSource
	publisher notify.Publisher
	tracker   *notify.Tracker
	logger    *slog.Logger
	clock     clock.Clock
}

// NewManager creates manager with empty transition state.
// Params: alert source, publisher (nil = log only), logger, and clock.
// Returns: initialized manager.
func NewManager(source AlertSource, publisher notify.Publisher, logger *slog.Logger, clk clock.Clock) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = notify.NewLogPublisher(logger)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Manager{
		source:    source,
		publisher: publisher,
		tracker:   notify.NewTracker(),
		logger:    logger,
		clock:     clk,
	}
}

// Tick compacts expired records, evaluates rules, and publishes firing/resolved transitions.
// Params: context for publish calls.
// Returns: ctx error before any transition is computed, else joined publish errors.
// Once computed, every transition is handed to the publisher and state advances even when publishing fails.
func (m *Manager) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	now := m.clock.Now()
	if evictedMetrics, evictedLogs := m.source.Compact(now); evictedMetrics+evictedLogs > 0 {
		m.logger.Debug("retention compaction", "metrics", evictedMetrics, "logs", evictedLogs)
	}

	alerts := m.source.ActiveAlerts()
	metrics.AlertsActive.Set(float64(len(alerts)))

	if err := ctx.Err(); err != nil {
		return err
	}
	var errs []error
	for _, notification := range m.tracker.Diff(alerts, now) {
		if err := m.publisher.Publish(ctx, notification); err != nil {
			m.logger.Error("alert notification failed",
				"alert_id", notification.AlertID,
				"state", string(notification.State),
				"error", err.Error(),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run calls Tick every interval until ctx is cancelled.
// Params: context and tick interval.
// Returns: nil on cancellation.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("tick processing failed", "error", err.Error())
			}
		}
	}
}

// Close releases publisher resources.
func (m *Manager) Close() error {
	return m.publisher.Close()
}
