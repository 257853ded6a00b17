package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"telemetry/internal/config"
	"telemetry/internal/domain"

	"github.com/nats-io/nats.go"
)

const alertsStreamMaxAge = 7 * 24 * time.Hour

// NATSPublisher publishes transitions into a JetStream stream with Nats-Msg-Id deduplication.
type NATSPublisher struct {
	js      nats.JetStreamContext
	subject string
}

// NewNATSPublisher ensures the alerts stream and creates producer.
// Params: shared connection and alerts config.
// Returns: publisher or setup error.
func NewNATSPublisher(nc *nats.Conn, cfg config.NATSAlertsConfig) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream init for alerts: %w", err)
	}
	if err := ensureStream(js, cfg.Stream, cfg.Subject); err != nil {
		return nil, err
	}
	return &NATSPublisher{js: js, subject: cfg.Subject}, nil
}

// Name returns channel name.
func (p *NATSPublisher) Name() string {
	return "nats"
}

// Publish sends notification JSON; redelivered transitions share one message id.
func (p *NATSPublisher) Publish(ctx context.Context, notification domain.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return markPermanent(fmt.Errorf("marshal alert notification: %w", err))
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, NotificationID(notification))
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish alert notification: %w", err)
	}
	return nil
}

// Close is a no-op; the connection is owned by the caller.
func (p *NATSPublisher) Close() error {
	return nil
}

// NotificationID derives deterministic dedupe id for one transition.
// Params: notification.
// Returns: sha1 hex of alert id, state, and detection time.
func NotificationID(notification domain.Notification) string {
	sum := sha1.Sum([]byte(notification.AlertID + "|" + string(notification.State) + "|" +
		strconv.FormatInt(notification.Timestamp.UnixMilli(), 10)))
	return hex.EncodeToString(sum[:])
}

// ensureStream ensures one JetStream stream exists for subject.
func ensureStream(js nats.JetStreamContext, streamName, subject string) error {
	_, err := js.StreamInfo(streamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %q: %w", streamName, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    alertsStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", streamName, err)
	}
	return nil
}
