package ingest

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"telemetry/internal/config"
	"telemetry/internal/domain"
	"telemetry/internal/store"
	"telemetry/test/testutil"
)

func TestNATSSubscriberIngestsPayloads(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	url, stop := testutil.StartLocalNATSServer(t)
	defer stop()
	nc := testutil.ConnectNATS(t, url)

	cfg := config.NATSIngestConfig{
		Enabled:       true,
		Subject:       "telemetry.events.test",
		Stream:        "TELEMETRY_EVENTS_TEST",
		ConsumerName:  "telemetry-ingest-test",
		DeliverGroup:  "telemetry-workers-test",
		AckWaitSec:    5,
		MaxDeliver:    -1,
		MaxAckPending: 64,
	}
	sink := store.New(store.Options{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subscriber, err := NewNATSSubscriber(nc, cfg, sink, logger)
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}
	defer subscriber.Close()

	payloads := []string{
		`{"type":"log","service":"checkout","fields":{"level":"error","message":"card declined"}}`,
		`not json`,
		`[{"type":"log","service":"checkout","fields":{"level":"info","message":"ok"}},{"type":"span"}]`,
	}
	for _, payload := range payloads {
		if err := PublishPayload(nc, cfg.Subject, []byte(payload)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	testutil.Eventually(t, 5*time.Second, func() bool {
		return sink.QueryLogs(domain.LogQuery{Service: "checkout"}).Total == 2
	})
	if got := sink.Services(); len(got) != 1 || got[0] != "checkout" {
		t.Fatalf("unexpected services %v", got)
	}
}
