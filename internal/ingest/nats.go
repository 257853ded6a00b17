package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"telemetry/internal/config"

	"github.com/nats-io/nats.go"
)

const ingestStreamMaxAge = 24 * time.Hour

// NATSSubscriber consumes telemetry payloads via JetStream queue consumer and forwards to sink.
// Params: JetStream queue subscription and logger.
// Returns: NATS ingest lifecycle handle.
type NATSSubscriber struct {
	sub    *nats.Subscription
	logger *slog.Logger
}

// NewNATSSubscriber ensures the ingest stream and starts a durable queue consumer.
// Params: shared connection, ingest config, sink, and logger.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(nc *nats.Conn, cfg config.NATSIngestConfig, sink EventSink, logger *slog.Logger) (*NATSSubscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream init for ingest: %w", err)
	}
	if err := ensureStream(js, cfg.Stream, cfg.Subject); err != nil {
		return nil, err
	}

	subscriber := &NATSSubscriber{logger: logger}
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(time.Duration(cfg.AckWaitSec) * time.Second),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}
	sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, func(message *nats.Msg) {
		subscriber.handle(sink, message)
	}, subOpts...)
	if err != nil {
		return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.DeliverGroup, err)
	}
	subscriber.sub = sub
	return subscriber, nil
}

// handle ingests one message; undecodable payloads are terminated and everything else is acked,
// so the accepted prefix of a rejected batch is never redelivered.
func (s *NATSSubscriber) handle(sink EventSink, message *nats.Msg) {
	events, decodeErr := DecodePayload(message.Data)
	if decodeErr != nil && len(events) == 0 {
		s.logger.Warn("nats ingest decode failed", "subject", message.Subject, "error", decodeErr.Error())
		if termErr := message.Term(); termErr != nil {
			s.logger.Warn("nats ingest term failed", "subject", message.Subject, "error", termErr.Error())
		}
		return
	}
	n, err := sink.IngestBatch(events)
	if err != nil {
		s.logger.Warn("nats ingest rejected events",
			"subject", message.Subject,
			"accepted", n,
			"total", len(events),
			"error", err.Error(),
		)
	} else if decodeErr != nil {
		s.logger.Warn("nats ingest stopped at malformed item",
			"subject", message.Subject,
			"accepted", n,
			"error", decodeErr.Error(),
		)
	}
	if ackErr := message.Ack(); ackErr != nil {
		s.logger.Warn("nats ingest ack failed", "subject", message.Subject, "error", ackErr.Error())
	}
}

// Close drains the queue subscription; the connection is owned by the caller.
// Params: none.
// Returns: drain error.
func (s *NATSSubscriber) Close() error {
	if s == nil || s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

// PublishPayload publishes one raw telemetry payload to the ingest subject.
// Params: shared connection, subject, and JSON payload (object or array).
// Returns: publish error.
func PublishPayload(nc *nats.Conn, subject string, payload []byte) error {
	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream init for ingest publish: %w", err)
	}
	if _, err := js.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish ingest payload: %w", err)
	}
	return nil
}

// ensureStream ensures one JetStream stream exists for subject.
// Params: JetStream context, stream name, and subject.
// Returns: stream create/lookup error.
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
		MaxAge:    ingestStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", streamName, err)
	}
	return nil
}
