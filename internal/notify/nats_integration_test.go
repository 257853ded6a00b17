package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"telemetry/internal/config"
	"telemetry/internal/domain"
	"telemetry/test/testutil"

	"github.com/nats-io/nats.go"
)

func TestNATSPublisherDeduplicatesTransitions(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	url, stop := testutil.StartLocalNATSServer(t)
	defer stop()
	nc := testutil.ConnectNATS(t, url)

	cfg := config.NATSAlertsConfig{Enabled: true, Subject: "telemetry.alerts.test", Stream: "TELEMETRY_ALERTS_TEST"}
	publisher, err := NewNATSPublisher(nc, cfg)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	notification := domain.Notification{
		AlertID:   "r:checkout",
		State:     domain.AlertStateFiring,
		Alert:     testAlert("r", "checkout"),
		Timestamp: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 2; i++ {
		if err := publisher.Publish(context.Background(), notification); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	info, err := js.StreamInfo(cfg.Stream)
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info.State.Msgs != 1 {
		t.Fatalf("expected duplicate publish to be dropped, got %d messages", info.State.Msgs)
	}

	sub, err := js.SubscribeSync(cfg.Subject, nats.DeliverAll())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	if msg.Header.Get(nats.MsgIdHdr) != NotificationID(notification) {
		t.Fatalf("unexpected msg id %q", msg.Header.Get(nats.MsgIdHdr))
	}
	var decoded domain.Notification
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.AlertID != "r:checkout" || decoded.State != domain.AlertStateFiring {
		t.Fatalf("unexpected notification %+v", decoded)
	}
}

func TestNotificationIDIsStable(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	a := NotificationID(domain.Notification{AlertID: "r:x", State: domain.AlertStateFiring, Timestamp: at})
	b := NotificationID(domain.Notification{AlertID: "r:x", State: domain.AlertStateFiring, Timestamp: at})
	c := NotificationID(domain.Notification{AlertID: "r:x", State: domain.AlertStateResolved, Timestamp: at})
	if a != b || a == c || len(a) != 40 {
		t.Fatalf("unexpected ids %q %q %q", a, b, c)
	}
}
