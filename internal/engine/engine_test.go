package engine

import (
	"testing"
	"time"

	"telemetry/internal/domain"
)

func TestEvaluateStrictThreshold(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	service := "checkout"
	rule := domain.Rule{ID: "r1", Name: "checkout errors", Service: &service, WindowMinutes: 5, Threshold: 0.1, Severity: "critical"}

	// exactly 1 error in 10 logs -> rate 0.1, must not fire
	logs := buildLogs(service, now, 10, 1)
	alerts := Evaluate(Snapshot{Rules: []domain.Rule{rule}, Services: []string{service}, Logs: logs}, now)
	if len(alerts) != 0 {
		t.Fatalf("expected no alert at threshold, got %+v", alerts)
	}

	// 2 errors in 10 logs -> rate 0.2, fires once
	logs = buildLogs(service, now, 10, 2)
	alerts = Evaluate(Snapshot{Rules: []domain.Rule{rule}, Services: []string{service}, Logs: logs}, now)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert above threshold, got %d", len(alerts))
	}
	if alerts[0].ID != "r1:checkout" || alerts[0].Value != 0.2 || alerts[0].Timestamp != now.UnixMilli() {
		t.Fatalf("unexpected alert %+v", alerts[0])
	}
}

func TestEvaluateEmptyWindowNeverFires(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	rule := domain.Rule{ID: "r", WindowMinutes: 5, Threshold: 0}
	old := []domain.LogRecord{{Service: "a", Level: "error", Message: "boom", Timestamp: now.Add(-10 * time.Minute).UnixMilli()}}

	alerts := Evaluate(Snapshot{Rules: []domain.Rule{rule}, Services: []string{"a"}, Logs: old}, now)
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts for empty window, got %+v", alerts)
	}
	if alerts == nil {
		t.Fatalf("expected empty non-nil slice")
	}
}

func TestEvaluateUnscopedRuleOrdersByRuleThenService(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	first := domain.Rule{ID: "first", WindowMinutes: 5, Threshold: 0.5}
	second := domain.Rule{ID: "second", WindowMinutes: 5, Threshold: 0.5}
	var logs []domain.LogRecord
	for _, service := range []string{"users", "payments"} {
		logs = append(logs, domain.LogRecord{Service: service, Level: "ERROR", Message: "x", Timestamp: now.UnixMilli()})
	}

	alerts := Evaluate(Snapshot{
		Rules:    []domain.Rule{first, second},
		Services: []string{"payments", "users"},
		Logs:     logs,
		Acked:    func(id string) bool { return id == "second:users" },
	}, now)
	want := []string{"first:payments", "first:users", "second:payments", "second:users"}
	if len(alerts) != len(want) {
		t.Fatalf("expected %d alerts, got %d", len(want), len(alerts))
	}
	for i, id := range want {
		if alerts[i].ID != id {
			t.Fatalf("alert[%d]: expected %s, got %s", i, id, alerts[i].ID)
		}
		if alerts[i].Acknowledged != (id == "second:users") {
			t.Fatalf("alert[%d]: unexpected ack flag %v", i, alerts[i].Acknowledged)
		}
	}
}

func TestErrorRateWindowIsInclusive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	rule := domain.Rule{WindowMinutes: 1}
	start := WindowStart(rule, now)
	logs := []domain.LogRecord{
		{Level: "error", Timestamp: int64(start)},
		{Level: "info", Timestamp: now},
		{Level: "error", Timestamp: int64(start) - 1},
		{Level: "error", Timestamp: now + 1},
	}
	stats := ErrorRate(logs, start, now)
	if stats.Total != 2 || stats.Errors != 1 || stats.Rate != 0.5 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestTargetServicesTreatsEmptyScopeAsAll(t *testing.T) {
	t.Parallel()

	empty := ""
	known := []string{"a", "b"}
	if got := TargetServices(domain.Rule{Service: &empty}, known); len(got) != 2 {
		t.Fatalf("expected all services, got %v", got)
	}
	scoped := "c"
	if got := TargetServices(domain.Rule{Service: &scoped}, known); len(got) != 1 || got[0] != "c" {
		t.Fatalf("expected scoped service, got %v", got)
	}
}

func buildLogs(service string, now time.Time, total, errors int) []domain.LogRecord {
	logs := make([]domain.LogRecord, 0, total)
	for i := 0; i < total; i++ {
		level := "info"
		if i < errors {
			level = "error"
		}
		logs = append(logs, domain.LogRecord{
			Service:   service,
			Level:     level,
			Message:   "request handled",
			Timestamp: now.Add(-time.Duration(i) * time.Second).UnixMilli(),
		})
	}
	return logs
}
