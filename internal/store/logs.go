package store

import (
	"sort"
	"strings"

	"telemetry/internal/domain"
)

// logSeries is the append-only log record list.
type logSeries struct {
	records []domain.LogRecord
	max     int
}

func (s *logSeries) append(record domain.LogRecord) int {
	s.records = append(s.records, record)
	if s.max <= 0 || len(s.records) <= s.max {
		return 0
	}
	drop := len(s.records) - s.max
	s.records = s.records[drop:]
	return drop
}

// query filters, sorts newest first, and paginates.
// Params: log filters and inclusive [from, to] millis.
// Returns: page with total pre-pagination match count; Logs is never nil.
func (s *logSeries) query(q domain.LogQuery, from, to int64) domain.LogPage {
	needle := strings.ToLower(q.Q)
	matches := make([]domain.LogRecord, 0)
	for _, record := range s.records {
		if q.Service != "" && record.Service != q.Service {
			continue
		}
		if q.Level != "" && !strings.EqualFold(record.Level, q.Level) {
			continue
		}
		if record.Timestamp < from || record.Timestamp > to {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(record.Message), needle) {
			continue
		}
		matches = append(matches, record)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp > matches[j].Timestamp
	})

	limit, offset := q.PageSize(), q.Offset
	if offset < 0 {
		offset = 0
	}
	page := domain.LogPage{Total: len(matches), Logs: []domain.LogRecord{}}
	if limit == 0 || offset >= len(matches) {
		return page
	}
	end := len(matches)
	if limit < end-offset {
		end = offset + limit
	}
	page.Logs = append(page.Logs, matches[offset:end]...)
	return page
}

func (s *logSeries) evictBefore(cutoff int64) int {
	kept := s.records[:0]
	for _, record := range s.records {
		if record.Timestamp >= cutoff {
			kept = append(kept, record)
		}
	}
	evicted := len(s.records) - len(kept)
	clear(s.records[len(kept):])
	s.records = kept
	return evicted
}

func (s *logSeries) reset() {
	s.records = nil
}
