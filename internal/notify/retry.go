package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"telemetry/internal/config"
	"telemetry/internal/domain"
)

// permanentError marks delivery failures that must not be retried.
type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	return e.err.Error()
}

func (e permanentError) Unwrap() error {
	return e.err
}

// markPermanent wraps err so withRetry gives up immediately.
func markPermanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var target permanentError
	return errors.As(err, &target)
}

// retrying wraps a channel publisher with its retry policy.
type retrying struct {
	Publisher
	retry  config.NotifyRetry
	logger *slog.Logger
}

// WithRetry applies retry policy to publisher; disabled policy returns publisher unchanged.
// Params: channel publisher, retry policy, and logger.
// Returns: publisher retrying transient failures with fixed or exponential backoff.
func WithRetry(publisher Publisher, retry config.NotifyRetry, logger *slog.Logger) Publisher {
	if !retry.Enabled {
		return publisher
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{Publisher: publisher, retry: retry, logger: logger}
}

// Publish sends notification until success, permanent failure, attempt limit, or context end.
func (r *retrying) Publish(ctx context.Context, notification domain.Notification) error {
	backoff := time.Duration(r.retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(r.retry.MaxMS) * time.Millisecond

	for attempt := 1; ; attempt++ {
		err := r.Publisher.Publish(ctx, notification)
		if err == nil {
			if r.retry.LogEachAttempt && attempt > 1 {
				r.logger.Info("notify send recovered after retries", "channel", r.Name(), "attempt", attempt)
			}
			return nil
		}
		if r.retry.LogEachAttempt {
			r.logger.Warn("notify send attempt failed", "channel", r.Name(), "attempt", attempt, "error", err.Error())
		}
		if isPermanent(err) {
			return err
		}
		if r.retry.MaxAttempts > 0 && attempt >= r.retry.MaxAttempts {
			return fmt.Errorf("channel %s failed after %d attempts: %w", r.Name(), attempt, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if strings.EqualFold(r.retry.Backoff, "exponential") {
			backoff = min(backoff*2, maxBackoff)
		}
	}
}
