package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"telemetry/internal/domain"
	"telemetry/internal/metrics"
)

// Publisher delivers alert transitions to one outbound channel.
// Params: context and notification.
// Returns: delivery error.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, notification domain.Notification) error
	Close() error
}

// Fanout publishes every notification to all channels and joins channel errors.
type Fanout struct {
	publishers []Publisher
	logger     *slog.Logger
}

// NewFanout builds multi-channel publisher.
// Params: logger and channel publishers (nil entries skipped).
// Returns: fanout publisher.
func NewFanout(logger *slog.Logger, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	out := &Fanout{logger: logger}
	for _, publisher := range publishers {
		if publisher != nil {
			out.publishers = append(out.publishers, publisher)
		}
	}
	return out
}

// Name returns composite channel name.
func (f *Fanout) Name() string {
	return "fanout"
}

// Channels lists configured channel names in publish order.
func (f *Fanout) Channels() []string {
	names := make([]string, 0, len(f.publishers))
	for _, publisher := range f.publishers {
		names = append(names, publisher.Name())
	}
	return names
}

// Publish sends notification to every channel; one failing channel does not block the others.
// Params: context and notification.
// Returns: joined channel errors.
func (f *Fanout) Publish(ctx context.Context, notification domain.Notification) error {
	var errs []error
	for _, publisher := range f.publishers {
		if err := publisher.Publish(ctx, notification); err != nil {
			metrics.NotificationErrors.WithLabelValues(publisher.Name()).Inc()
			f.logger.Error("notify publish failed",
				"channel", publisher.Name(),
				"alert_id", notification.AlertID,
				"state", string(notification.State),
				"error", err.Error(),
			)
			errs = append(errs, fmt.Errorf("%s: %w", publisher.Name(), err))
			continue
		}
		metrics.NotificationsPublished.WithLabelValues(publisher.Name(), string(notification.State)).Inc()
	}
	return errors.Join(errs...)
}

// Close closes every channel and joins close errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, publisher := range f.publishers {
		if err := publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", publisher.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes transitions to the service log.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates log channel.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Name returns channel name.
func (p *LogPublisher) Name() string {
	return "log"
}

// Publish logs firing transitions at warn level and resolutions at info level.
func (p *LogPublisher) Publish(ctx context.Context, notification domain.Notification) error {
	level := slog.LevelInfo
	if notification.State == domain.AlertStateFiring {
		level = slog.LevelWarn
	}
	alert := notification.Alert
	p.logger.Log(ctx, level, "alert "+string(notification.State),
		"alert_id", notification.AlertID,
		"rule_id", alert.RuleID,
		"service", alert.Service,
		"severity", alert.Severity,
		"value", alert.Value,
		"threshold", alert.Threshold,
		"acknowledged", alert.Acknowledged,
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}

// Tracker derives firing/resolved transitions between consecutive evaluations.
// Not safe for concurrent use; the evaluation loop owns it.
type Tracker struct {
	active map[string]domain.Alert
}

// NewTracker creates tracker with empty previous evaluation.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]domain.Alert)}
}

// Diff compares current alerts with previous evaluation.
// Params: alerts from the latest evaluation and detection time.
// Returns: firing notifications in evaluation order, then resolved notifications sorted by id.
func (t *Tracker) Diff(alerts []domain.Alert, now time.Time) []domain.Notification {
	next := make(map[string]domain.Alert, len(alerts))
	out := make([]domain.Notification, 0)
	for _, alert := range alerts {
		next[alert.ID] = alert
		if _, ok := t.active[alert.ID]; ok {
			continue
		}
		out = append(out, domain.Notification{
			AlertID:   alert.ID,
			State:     domain.AlertStateFiring,
			Alert:     alert,
			Timestamp: now,
		})
	}

	resolved := make([]string, 0)
	for id := range t.active {
		if _, ok := next[id]; !ok {
			resolved = append(resolved, id)
		}
	}
	sort.Strings(resolved)
	for _, id := range resolved {
		alert := t.active[id]
		alert.Timestamp = now.UnixMilli()
		out = append(out, domain.Notification{
			AlertID:   id,
			State:     domain.AlertStateResolved,
			Alert:     alert,
			Timestamp: now,
		})
	}
	t.active = next
	return out
}

// Active returns number of alerts seen in the latest evaluation.
func (t *Tracker) Active() int {
	return len(t.active)
}
