package engine

import (
	"strings"
	"time"

	"telemetry/internal/domain"
)

const errorLevel = "error"

// Snapshot is the read-only state one evaluation runs against.
// Params: registry rules in order, sorted known services, log records, and ack lookup.
// Returns: evaluator input; callers hold the store lock while evaluating.
type Snapshot struct {
	Rules    []domain.Rule
	Services []string
	Logs     []domain.LogRecord
	Acked    func(alertID string) bool
}

// WindowStats is the error-rate observation for one service window.
type WindowStats struct {
	Errors int
	Total  int
	Rate   float64
}

// Evaluate derives active alert instances for every rule and target service.
// Params: state snapshot and evaluation time.
// Returns: alerts ordered by rule order then service order; never nil.
func Evaluate(snapshot Snapshot, now time.Time) []domain.Alert {
	alerts := make([]domain.Alert, 0)
	if len(snapshot.Rules) == 0 {
		return alerts
	}

	byService := indexByService(snapshot.Logs)
	nowMS := now.UnixMilli()
	for _, rule := range snapshot.Rules {
		for _, service := range TargetServices(rule, snapshot.Services) {
			stats := ErrorRate(byService[service], WindowStart(rule, nowMS), nowMS)
			if stats.Rate <= rule.Threshold {
				continue
			}
			id := domain.AlertID(rule.ID, service)
			acked := false
			if snapshot.Acked != nil {
				acked = snapshot.Acked(id)
			}
			alerts = append(alerts, domain.Alert{
				ID:            id,
				RuleID:        rule.ID,
				Service:       service,
				Name:          rule.Name,
				Severity:      rule.Severity,
				Value:         stats.Rate,
				Threshold:     rule.Threshold,
				WindowMinutes: rule.WindowMinutes,
				Timestamp:     nowMS,
				Acknowledged:  acked,
			})
		}
	}
	return alerts
}

// TargetServices resolves which services one rule applies to.
// Params: rule and sorted known services.
// Returns: rule service when scoped, otherwise all known services.
func TargetServices(rule domain.Rule, known []string) []string {
	if scope := rule.ServiceScope(); scope != "" {
		return []string{scope}
	}
	return known
}

// WindowStart computes inclusive lower bound of rule window.
// Params: rule and evaluation time in unix milliseconds.
// Returns: window start in milliseconds (fractional minutes allowed).
func WindowStart(rule domain.Rule, nowMS int64) float64 {
	return float64(nowMS) - rule.WindowMinutes*float64(time.Minute/time.Millisecond)
}

// ErrorRate counts error-level logs within [windowStart, end].
// Params: logs of one service, inclusive window bounds in milliseconds.
// Returns: stats where Rate = errors / max(1, total).
func ErrorRate(logs []domain.LogRecord, windowStart float64, end int64) WindowStats {
	var stats WindowStats
	for _, record := range logs {
		if float64(record.Timestamp) < windowStart || record.Timestamp > end {
			continue
		}
		stats.Total++
		if strings.EqualFold(record.Level, errorLevel) {
			stats.Errors++
		}
	}
	stats.Rate = float64(stats.Errors) / float64(max(1, stats.Total))
	return stats
}

func indexByService(logs []domain.LogRecord) map[string][]domain.LogRecord {
	index := make(map[string][]domain.LogRecord)
	for _, record := range logs {
		index[record.Service] = append(index[record.Service], record)
	}
	return index
}
