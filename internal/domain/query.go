package domain

import (
	"strings"
	"time"
)

// DefaultLogLimit is page size used when LogQuery.Limit is unset.
const DefaultLogLimit = 200

// MetricQuery selects one metric series.
// Params: exact service and metric name, optional range (zero = epoch / now), optional bucket width.
// Returns: query description for the metric store.
type MetricQuery struct {
	Service      string
	Name         string
	From         time.Time
	To           time.Time
	ResolutionMs int64
}

// Validate checks required selectors.
// Params: none.
// Returns: validation error for missing service/name or negative resolution.
func (q MetricQuery) Validate() error {
	if strings.TrimSpace(q.Service) == "" || strings.TrimSpace(q.Name) == "" {
		return NewValidationError("", "service and metric required")
	}
	if q.ResolutionMs < 0 {
		return NewValidationError("resolutionMs", "resolution must be >=0")
	}
	return nil
}

// LogQuery filters and paginates logs; empty strings disable a filter.
// A nil Limit selects DefaultLogLimit; an explicit limit <= 0 yields an empty page.
type LogQuery struct {
	Service string
	Level   string
	Q       string
	From    time.Time
	To      time.Time
	Limit   *int
	Offset  int
}

// WithLimit returns a copy of q with an explicit page size.
func (q LogQuery) WithLimit(limit int) LogQuery {
	q.Limit = &limit
	return q
}

// PageSize resolves the effective page size.
// Params: none.
// Returns: DefaultLogLimit when unset, otherwise the explicit limit clamped at 0.
func (q LogQuery) PageSize() int {
	if q.Limit == nil {
		return DefaultLogLimit
	}
	return max(*q.Limit, 0)
}

// LogPage is one page of logs with the total pre-pagination match count.
type LogPage struct {
	Total int         `json:"total"`
	Logs  []LogRecord `json:"logs"`
}

// Bounds resolves optional range into inclusive unix-millisecond bounds.
// Params: from/to (zero values default to epoch and now) and current time.
// Returns: inclusive [from, to] in milliseconds.
func Bounds(from, to, now time.Time) (int64, int64) {
	var fromMS int64
	if !from.IsZero() {
		fromMS = from.UnixMilli()
	}
	toMS := now.UnixMilli()
	if !to.IsZero() {
		toMS = to.UnixMilli()
	}
	return fromMS, toMS
}
