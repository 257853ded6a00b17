// Package store implements the in-memory telemetry store: metric and log series,
// alert rule registry, and acknowledgment tracking behind one coarse lock.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"telemetry/internal/clock"
	"telemetry/internal/domain"
	"telemetry/internal/engine"
	"telemetry/internal/metrics"
)

// Options configures store construction.
// Params: clock, retention caps (0 = unbounded), seed rules added after the default rule, and id generator.
// Returns: store settings.
type Options struct {
	Clock      clock.Clock
	MaxMetrics int
	MaxLogs    int
	MaxAge     time.Duration
	Rules      []domain.Rule
	NewID      func() string
}

// Store owns all telemetry state; every method is synchronous and safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	clock   clock.Clock
	maxAge  time.Duration
	metrics metricSeries
	logs    logSeries
	rules   *ruleRegistry
	acks    ackSet
}

// New creates store with the built-in default rule followed by seed rules.
// Params: store options.
// Returns: initialized store.
func New(opts Options) *Store {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	seed := append([]domain.Rule{domain.DefaultRule()}, opts.Rules...)
	return &Store{
		clock:   clk,
		maxAge:  opts.MaxAge,
		metrics: metricSeries{max: opts.MaxMetrics},
		logs:    logSeries{max: opts.MaxLogs},
		rules:   newRuleRegistry(opts.NewID, seed),
		acks:    make(ackSet),
	}
}

// Ingest validates and appends one event.
// Params: raw telemetry event.
// Returns: validation error when the event is rejected.
func (s *Store) Ingest(event domain.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestLocked(event, s.clock.Now())
}

// IngestBatch appends events in order and stops at the first invalid one.
// Params: raw telemetry events.
// Returns: number of appended events and the first error (earlier appends are kept).
func (s *Store) IngestBatch(events []domain.RawEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for i, event := range events {
		if err := s.ingestLocked(event, now); err != nil {
			return i, fmt.Errorf("event[%d]: %w", i, err)
		}
	}
	return len(events), nil
}

func (s *Store) ingestLocked(event domain.RawEvent, now time.Time) error {
	record, err := event.Normalize(now)
	if err != nil {
		metrics.EventsRejected.Inc()
		return err
	}
	switch {
	case record.Metric != nil:
		if evicted := s.metrics.append(*record.Metric); evicted > 0 {
			metrics.RecordsEvicted.WithLabelValues("metric").Add(float64(evicted))
		}
		metrics.RecordsStored.WithLabelValues("metric").Set(float64(len(s.metrics.records)))
	case record.Log != nil:
		if evicted := s.logs.append(*record.Log); evicted > 0 {
			metrics.RecordsEvicted.WithLabelValues("log").Add(float64(evicted))
		}
		metrics.RecordsStored.WithLabelValues("log").Set(float64(len(s.logs.records)))
	}
	metrics.EventsIngested.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// Services lists distinct non-empty services seen in metric and log stores.
// Params: none.
// Returns: lexicographically sorted service names.
func (s *Store) Services() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.servicesLocked()
}

func (s *Store) servicesLocked() []string {
	seen := make(map[string]struct{})
	for _, record := range s.metrics.records {
		seen[record.Service] = struct{}{}
	}
	for _, record := range s.logs.records {
		seen[record.Service] = struct{}{}
	}
	delete(seen, "")
	services := make([]string, 0, len(seen))
	for service := range seen {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

// QueryMetrics returns raw or bucket-averaged series for one service metric.
// Params: metric query (service and name required).
// Returns: ascending points (empty when nothing matches) or validation error.
func (s *Store) QueryMetrics(q domain.MetricQuery) ([]domain.Point, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, to := domain.Bounds(q.From, q.To, s.clock.Now())
	return s.metrics.query(q.Service, q.Name, from, to, q.ResolutionMs), nil
}

// QueryLogs filters logs, orders newest first, and paginates.
// Params: log query (limit <= 0 means default page size).
// Returns: page with total match count.
func (s *Store) QueryLogs(q domain.LogQuery) domain.LogPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, to := domain.Bounds(q.From, q.To, s.clock.Now())
	return s.logs.query(q, from, to)
}

// Rules lists alert rules in insertion order.
func (s *Store) Rules() []domain.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules.list()
}

// CreateRule validates input and appends rule with a fresh id.
// Params: rule input (name and threshold required).
// Returns: created rule or validation error.
func (s *Store) CreateRule(input domain.RuleInput) (domain.Rule, error) {
	if err := input.Validate(); err != nil {
		return domain.Rule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.create(input), nil
}

// UpdateRule merges patch into existing rule without re-validation.
// Params: rule id and partial fields.
// Returns: false when the id is unknown.
func (s *Store) UpdateRule(id string, patch domain.RulePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.update(id, patch)
}

// DeleteRule removes rule by id.
// Params: rule id.
// Returns: false when the id is unknown.
func (s *Store) DeleteRule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.delete(id)
}

// ActiveAlerts evaluates every rule against the log store at current time.
// Params: none.
// Returns: active alert instances with acknowledgment flags.
func (s *Store) ActiveAlerts() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return engine.Evaluate(engine.Snapshot{
		Rules:    s.rules.rules,
		Services: s.servicesLocked(),
		Logs:     s.logs.records,
		Acked:    s.acks.has,
	}, s.clock.Now())
}

// AcknowledgeAlert marks alert instance id as acknowledged; unknown ids are accepted.
// Params: alert instance id "<ruleId>:<service>".
func (s *Store) AcknowledgeAlert(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks.add(id)
}

// AcknowledgedCount returns size of acknowledgment set.
func (s *Store) AcknowledgedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.acks)
}

// Compact evicts records older than configured max age.
// Params: reference time.
// Returns: evicted metric and log counts (zero when max age is disabled).
func (s *Store) Compact(now time.Time) (int, int) {
	if s.maxAge <= 0 {
		return 0, 0
	}
	cutoff := now.Add(-s.maxAge).UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	evictedMetrics := s.metrics.evictBefore(cutoff)
	evictedLogs := s.logs.evictBefore(cutoff)
	metrics.RecordsEvicted.WithLabelValues("metric").Add(float64(evictedMetrics))
	metrics.RecordsEvicted.WithLabelValues("log").Add(float64(evictedLogs))
	metrics.RecordsStored.WithLabelValues("metric").Set(float64(len(s.metrics.records)))
	metrics.RecordsStored.WithLabelValues("log").Set(float64(len(s.logs.records)))
	return evictedMetrics, evictedLogs
}

// Reset clears metrics, logs, and acknowledgments; the rule registry is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.reset()
	s.logs.reset()
	clear(s.acks)
	metrics.RecordsStored.WithLabelValues("metric").Set(0)
	metrics.RecordsStored.WithLabelValues("log").Set(0)
}
