package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// EventType identifies incoming telemetry shape.
// Params: constants "metric" or "log".
// Returns: discriminator used by Normalize.
type EventType string

const (
	// EventTypeMetric marks numeric observation.
	EventTypeMetric EventType = "metric"
	// EventTypeLog marks log line.
	EventTypeLog EventType = "log"
)

// RawEvent is one telemetry item as submitted by a client.
// Params: type discriminator, service name, optional ISO-8601 timestamp, and type-specific fields.
// Returns: unvalidated payload accepted by ingest interfaces.
type RawEvent struct {
	Type      EventType   `json:"type"`
	Service   string      `json:"service"`
	Timestamp string      `json:"timestamp,omitempty"`
	Fields    EventFields `json:"fields"`
}

// EventFields carries payload of metric (name/value) or log (level/message) events.
// Value stays untyped until coerced so numeric strings are accepted.
type EventFields struct {
	Name    string `json:"name,omitempty"`
	Value   any    `json:"value,omitempty"`
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
}

// Normalize validates one raw event and resolves its timestamp.
// Params: raw event and ingestion time used when timestamp is absent.
// Returns: record with exactly one of Metric/Log set, or validation error.
func (e RawEvent) Normalize(now time.Time) (Record, error) {
	ts := now.UnixMilli()
	if strings.TrimSpace(e.Timestamp) != "" {
		parsed, err := ParseTimestamp(e.Timestamp)
		if err != nil {
			return Record{}, err
		}
		ts = parsed
	}

	switch e.Type {
	case EventTypeMetric:
		if e.Fields.Name == "" || e.Fields.Value == nil {
			return Record{}, NewValidationError("fields", "metric fields require name and value")
		}
		value, ok := CoerceNumber(e.Fields.Value)
		if !ok {
			return Record{}, NewValidationError("fields.value", "value %v is not numeric", e.Fields.Value)
		}
		if strings.TrimSpace(e.Service) == "" {
			return Record{}, NewValidationError("service", "metric requires service")
		}
		return Record{Metric: &Metric{
			Service:   e.Service,
			Name:      e.Fields.Name,
			Value:     value,
			Timestamp: ts,
		}}, nil
	case EventTypeLog:
		if e.Fields.Level == "" || e.Fields.Message == "" {
			return Record{}, NewValidationError("fields", "log fields require level and message")
		}
		return Record{Log: &LogRecord{
			Service:   e.Service,
			Level:     e.Fields.Level,
			Message:   e.Fields.Message,
			Timestamp: ts,
		}}, nil
	default:
		return Record{}, NewValidationError("type", "unknown telemetry type")
	}
}

// CoerceNumber converts loosely typed value into a finite float64.
// Params: JSON-decoded or in-process value (number, numeric string, bool, json.Number).
// Returns: numeric value and ok=false when not coercible.
func CoerceNumber(value any) (float64, bool) {
	var out float64
	switch v := value.(type) {
	case float64:
		out = v
	case float32:
		out = float64(v)
	case int:
		out = float64(v)
	case int64:
		out = float64(v)
	case int32:
		out = float64(v)
	case uint64:
		out = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		out = parsed
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		out = parsed
	case bool:
		if v {
			out = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, false
	}
	return out, true
}
