package api

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"telemetry/internal/clock"
	"telemetry/internal/config"
	"telemetry/internal/domain"
	"telemetry/internal/mockgen"
	"telemetry/internal/store"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	server *httptest.Server
	store  *store.Store
	clock  *clock.ManualClock
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	clk := clock.NewManual(testNow)
	st := store.New(store.Options{Clock: clk})
	opts := Options{
		HTTP:  config.Default().HTTP,
		Store: st,
		Clock: clk,
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := httptest.NewServer(NewRouter(opts))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, store: st, clock: clk}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func decodeBody[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return out
}

func isoAt(at time.Time) string {
	return at.UTC().Format(time.RFC3339Nano)
}

func TestIngestAndQueryMetricsWithBuckets(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	body := fmt.Sprintf(`[
		{"type":"metric","service":"payments","timestamp":%q,"fields":{"name":"latency","value":100}},
		{"type":"metric","service":"payments","timestamp":%q,"fields":{"name":"latency","value":"300"}},
		{"type":"metric","service":"payments","timestamp":%q,"fields":{"name":"latency","value":50}}
	]`, isoAt(testNow.Add(-90*time.Second)), isoAt(testNow.Add(-80*time.Second)), isoAt(testNow.Add(-5*time.Second)))
	status, raw := env.do(t, http.MethodPost, "/ingest", body)
	if status != http.StatusOK || !strings.Contains(string(raw), `"ok"`) {
		t.Fatalf("ingest status=%d body=%s", status, raw)
	}

	status, raw = env.do(t, http.MethodGet, "/metrics?service=payments&metric=latency&resolutionMs=60000", "")
	if status != http.StatusOK {
		t.Fatalf("metrics status=%d body=%s", status, raw)
	}
	got := decodeBody[struct {
		Series []domain.Point `json:"series"`
	}](t, raw)
	if len(got.Series) != 2 {
		t.Fatalf("expected 2 buckets, got %+v", got.Series)
	}
	if got.Series[0].Value != 200 || got.Series[1].Value != 50 {
		t.Fatalf("unexpected bucket means %+v", got.Series)
	}
	if got.Series[0].Timestamp%60000 != 0 {
		t.Fatalf("bucket timestamp not aligned: %d", got.Series[0].Timestamp)
	}
}

func TestIngestRejectsInvalidItemKeepingEarlierOnes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	body := `[
		{"type":"log","service":"users","fields":{"level":"info","message":"ok"}},
		{"type":"trace","service":"users"},
		{"type":"log","service":"orders","fields":{"level":"info","message":"never stored"}}
	]`
	status, raw := env.do(t, http.MethodPost, "/ingest/batch", body)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", status, raw)
	}
	if msg := decodeBody[errorResponse](t, raw).Error; msg == "" {
		t.Fatalf("expected error message, got %s", raw)
	}

	status, raw = env.do(t, http.MethodGet, "/services", "")
	if status != http.StatusOK {
		t.Fatalf("services status=%d", status)
	}
	got := decodeBody[map[string][]string](t, raw)
	if len(got["services"]) != 1 || got["services"][0] != "users" {
		t.Fatalf("expected only users retained, got %v", got["services"])
	}
}

func TestIngestKeepsItemsBeforeMistypedItem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	body := `[
		{"type":"log","service":"users","fields":{"level":"info","message":"one"}},
		{"type":"log","service":"users","fields":{"level":"info","message":"two"}},
		{"type":"log","service":"users","fields":{"level":"info","message":5}}
	]`
	status, raw := env.do(t, http.MethodPost, "/ingest", body)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", status, raw)
	}
	if msg := decodeBody[errorResponse](t, raw).Error; !strings.Contains(msg, "event[2]") {
		t.Fatalf("expected event[2] in error, got %q", msg)
	}
	if page := env.store.QueryLogs(domain.LogQuery{Service: "users"}); page.Total != 2 {
		t.Fatalf("expected 2 stored logs, got %+v", page)
	}
}

func TestIngestRejectsMalformedBodies(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	for _, body := range []string{`{`, `42`, `{"type":"log","service":"a","fields":{"level":"info","message":"m"}} {}`} {
		status, raw := env.do(t, http.MethodPost, "/ingest", body)
		if status != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d (%s)", body, status, raw)
		}
	}
}

func TestIngestBodyLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(opts *Options) { opts.HTTP.MaxBodyBytes = 16 })
	status, raw := env.do(t, http.MethodPost, "/ingest", `{"type":"log","service":"users","fields":{"level":"info","message":"too long"}}`)
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d body=%s", status, raw)
	}
}

func TestIngestRateLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(opts *Options) {
		opts.HTTP.IngestRatePerSec = 0.001
		opts.HTTP.IngestBurst = 1
	})
	body := `{"type":"log","service":"users","fields":{"level":"info","message":"m"}}`
	if status, raw := env.do(t, http.MethodPost, "/ingest", body); status != http.StatusOK {
		t.Fatalf("first request: %d %s", status, raw)
	}
	if status, raw := env.do(t, http.MethodPost, "/ingest", body); status != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d %s", status, raw)
	}
	if status, _ := env.do(t, http.MethodGet, "/services", ""); status != http.StatusOK {
		t.Fatalf("query routes must not be rate limited, got %d", status)
	}
}

func TestMetricsQueryValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	cases := []string{
		"/metrics?metric=latency",
		"/metrics?service=payments",
		"/metrics?service=payments&metric=latency&from=yesterday",
		"/metrics?service=payments&metric=latency&resolutionMs=abc",
		"/metrics?service=payments&metric=latency&resolutionMs=-5",
	}
	for _, path := range cases {
		status, raw := env.do(t, http.MethodGet, path, "")
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d body=%s", path, status, raw)
		}
	}
}

func TestLogsQueryFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	events := make([]domain.RawEvent, 0, 5)
	for i := range 5 {
		level := "info"
		if i%2 == 0 {
			level = "error"
		}
		events = append(events, domain.RawEvent{
			Type:      domain.EventTypeLog,
			Service:   "checkout",
			Timestamp: isoAt(testNow.Add(-time.Duration(5-i) * time.Minute)),
			Fields:    domain.EventFields{Level: level, Message: fmt.Sprintf("Card Declined #%d", i)},
		})
	}
	if _, err := env.store.IngestBatch(events); err != nil {
		t.Fatalf("seed logs: %v", err)
	}

	status, raw := env.do(t, http.MethodGet, "/logs?service=checkout&level=error&q=card&limit=1&offset=1", "")
	if status != http.StatusOK {
		t.Fatalf("logs status=%d body=%s", status, raw)
	}
	page := decodeBody[domain.LogPage](t, raw)
	if page.Total != 3 || len(page.Logs) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Logs[0].Message != "Card Declined #2" {
		t.Fatalf("expected second newest error, got %q", page.Logs[0].Message)
	}

	from := isoAt(testNow.Add(-2 * time.Minute))
	status, raw = env.do(t, http.MethodGet, "/logs?from="+from, "")
	if status != http.StatusOK {
		t.Fatalf("logs range status=%d", status)
	}
	if page := decodeBody[domain.LogPage](t, raw); page.Total != 2 {
		t.Fatalf("expected 2 logs since from, got %+v", page)
	}

	status, raw = env.do(t, http.MethodGet, "/logs?service=checkout&limit=0", "")
	if status != http.StatusOK {
		t.Fatalf("logs limit=0 status=%d", status)
	}
	if page := decodeBody[domain.LogPage](t, raw); page.Total != 5 || len(page.Logs) != 0 {
		t.Fatalf("expected empty page for limit=0, got %+v", page)
	}

	for _, path := range []string{"/logs?limit=ten", "/logs?offset=x", "/logs?to=nope"} {
		if status, _ := env.do(t, http.MethodGet, path, ""); status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, status)
		}
	}
}

func TestRuleCRUDAndAlertAcknowledgement(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	if status, raw := env.do(t, http.MethodDelete, "/rules/"+domain.DefaultRuleID, ""); status != http.StatusOK || !strings.Contains(string(raw), `"ok"`) {
		t.Fatalf("delete default rule: %d %s", status, raw)
	}

	status, raw := env.do(t, http.MethodPost, "/rules", `{"name":"Checkout errors","service":"checkout","threshold":0.05,"windowMinutes":5}`)
	if status != http.StatusOK {
		t.Fatalf("create rule: %d %s", status, raw)
	}
	created := decodeBody[struct {
		Status string      `json:"status"`
		Rule   domain.Rule `json:"rule"`
	}](t, raw)
	if created.Status != "ok" || created.Rule.ID == "" || created.Rule.ServiceScope() != "checkout" {
		t.Fatalf("unexpected create response %+v", created)
	}

	events := make([]domain.RawEvent, 0, 10)
	for i := range 10 {
		level := "info"
		if i == 0 {
			level = "error"
		}
		events = append(events, domain.RawEvent{
			Type:      domain.EventTypeLog,
			Service:   "checkout",
			Timestamp: isoAt(testNow.Add(-time.Duration(i+1) * 20 * time.Second)),
			Fields:    domain.EventFields{Level: level, Message: "request"},
		})
	}
	payload, err := json.Marshal(events)
	if err != nil {
		t.Fatalf("marshal events: %v", err)
	}
	if status, raw := env.do(t, http.MethodPost, "/ingest", string(payload)); status != http.StatusOK {
		t.Fatalf("ingest: %d %s", status, raw)
	}

	alertID := domain.AlertID(created.Rule.ID, "checkout")
	findAlert := func() domain.Alert {
		t.Helper()
		status, raw := env.do(t, http.MethodGet, "/alerts", "")
		if status != http.StatusOK {
			t.Fatalf("alerts: %d %s", status, raw)
		}
		got := decodeBody[map[string][]domain.Alert](t, raw)
		for _, alert := range got["alerts"] {
			if alert.ID == alertID {
				return alert
			}
		}
		t.Fatalf("alert %s not active in %+v", alertID, got["alerts"])
		return domain.Alert{}
	}

	alert := findAlert()
	if alert.Value != 0.1 || alert.Threshold != 0.05 || alert.Acknowledged {
		t.Fatalf("unexpected alert before ack %+v", alert)
	}
	if status, raw := env.do(t, http.MethodPost, "/alerts/ack", fmt.Sprintf(`{"id":%q}`, alertID)); status != http.StatusOK {
		t.Fatalf("ack: %d %s", status, raw)
	}
	if alert := findAlert(); !alert.Acknowledged {
		t.Fatalf("expected acknowledged alert, got %+v", alert)
	}

	status, raw = env.do(t, http.MethodPut, "/rules/"+created.Rule.ID, `{"threshold":0.5}`)
	if status != http.StatusOK || decodeBody[statusResponse](t, raw).Status != "ok" {
		t.Fatalf("update rule: %d %s", status, raw)
	}
	status, raw = env.do(t, http.MethodGet, "/alerts", "")
	if status != http.StatusOK {
		t.Fatalf("alerts after update: %d", status)
	}
	if got := decodeBody[map[string][]domain.Alert](t, raw); len(got["alerts"]) != 0 {
		t.Fatalf("expected no alerts above raised threshold, got %+v", got["alerts"])
	}

	status, raw = env.do(t, http.MethodGet, "/rules", "")
	if status != http.StatusOK {
		t.Fatalf("list rules: %d", status)
	}
	rules := decodeBody[map[string][]domain.Rule](t, raw)["rules"]
	if len(rules) != 1 || rules[0].Threshold != 0.5 {
		t.Fatalf("unexpected rules %+v", rules)
	}
}

func TestRuleEndpointsRejectIncompleteInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	for _, body := range []string{
		`{"service":"checkout","threshold":0.1}`,
		`{"name":"x","threshold":0.1}`,
		`{"name":"x","service":"checkout"}`,
		`not json`,
	} {
		if status, raw := env.do(t, http.MethodPost, "/rules", body); status != http.StatusBadRequest {
			t.Fatalf("create %s: expected 400, got %d %s", body, status, raw)
		}
	}

	for _, tc := range []struct {
		method string
		body   string
	}{
		{http.MethodPut, `{"name":"renamed"}`},
		{http.MethodDelete, ""},
	} {
		status, raw := env.do(t, tc.method, "/rules/missing", tc.body)
		if status != http.StatusOK || decodeBody[statusResponse](t, raw).Status != "not_found" {
			t.Fatalf("%s unknown rule: %d %s", tc.method, status, raw)
		}
	}
}

func TestAckRequiresIDAndAcceptsUnknownIDs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	if status, _ := env.do(t, http.MethodPost, "/alerts/ack", `{}`); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", status)
	}
	if status, _ := env.do(t, http.MethodPost, "/alerts/ack", `{"id":"nope:nothing"}`); status != http.StatusOK {
		t.Fatalf("expected 200 for unknown id, got %d", status)
	}
	if got := env.store.AcknowledgedCount(); got != 1 {
		t.Fatalf("expected one ack recorded, got %d", got)
	}
}

func TestMockGenerateRoute(t *testing.T) {
	t.Parallel()

	disabled := newTestEnv(t, nil)
	if status, _ := disabled.do(t, http.MethodPost, "/mock/generate", ""); status != http.StatusNotFound {
		t.Fatalf("expected 404 without generator, got %d", status)
	}

	env := newTestEnv(t, func(opts *Options) {
		opts.Generator = mockgen.New(rand.NewPCG(7, 11))
	})
	status, raw := env.do(t, http.MethodPost, "/mock/generate", "")
	if status != http.StatusOK {
		t.Fatalf("mock generate: %d %s", status, raw)
	}
	got := decodeBody[struct {
		Status    string `json:"status"`
		Generated int    `json:"generated"`
	}](t, raw)
	if got.Status != "ok" || got.Generated < 3*361*3 {
		t.Fatalf("unexpected mock response %+v", got)
	}
	services := env.store.Services()
	if len(services) != 3 {
		t.Fatalf("expected three mock services, got %v", services)
	}
}

func TestProbesAndStatus(t *testing.T) {
	t.Parallel()

	var ready atomic.Bool
	env := newTestEnv(t, func(opts *Options) {
		opts.Ready = ready.Load
	})

	if status, raw := env.do(t, http.MethodGet, "/healthz", ""); status != http.StatusOK || string(raw) != "ok" {
		t.Fatalf("health: %d %s", status, raw)
	}
	if status, _ := env.do(t, http.MethodGet, "/readyz", ""); status != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready, got %d", status)
	}
	ready.Store(true)
	if status, _ := env.do(t, http.MethodGet, "/readyz", ""); status != http.StatusOK {
		t.Fatalf("expected ready, got %d", status)
	}
	if status, raw := env.do(t, http.MethodGet, "/api/status", ""); status != http.StatusOK || decodeBody[statusResponse](t, raw).Status != "ok" {
		t.Fatalf("status: %d %s", status, raw)
	}

	status, raw := env.do(t, http.MethodGet, "/prometheus", "")
	if status != http.StatusOK {
		t.Fatalf("prometheus: %d", status)
	}
	if !strings.Contains(string(raw), "telemetry_http_requests_total") {
		t.Fatalf("expected http metrics in exposition")
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/rules", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.Fatalf("expected successful preflight, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected allow-origin header")
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Fatalf("unexpected allow-methods %q", got)
	}
}
