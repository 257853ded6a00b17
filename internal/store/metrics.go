package store

import (
	"sort"

	"telemetry/internal/domain"
)

// metricSeries is the append-only metric record list.
// Params: records in arrival order and optional cap (0 = unbounded).
// Returns: storage used by Store under its lock.
type metricSeries struct {
	records []domain.Metric
	max     int
}

// append adds one record and trims oldest arrivals past the cap.
// Returns: number of evicted records.
func (s *metricSeries) append(record domain.Metric) int {
	s.records = append(s.records, record)
	return s.trim()
}

func (s *metricSeries) trim() int {
	if s.max <= 0 || len(s.records) <= s.max {
		return 0
	}
	drop := len(s.records) - s.max
	s.records = s.records[drop:]
	return drop
}

// query filters by service/name and inclusive range, then optionally downsamples.
// Params: exact service and name, inclusive [from, to] millis, bucket width (0 = raw).
// Returns: ascending points; never nil.
func (s *metricSeries) query(service, name string, from, to, resolutionMS int64) []domain.Point {
	points := make([]domain.Point, 0)
	for _, record := range s.records {
		if record.Service != service || record.Name != name {
			continue
		}
		if record.Timestamp < from || record.Timestamp > to {
			continue
		}
		points = append(points, domain.Point{Timestamp: record.Timestamp, Value: record.Value})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
	if resolutionMS <= 0 {
		return points
	}
	return downsample(points, resolutionMS)
}

// evictBefore drops records older than cutoff.
// Returns: number of evicted records.
func (s *metricSeries) evictBefore(cutoff int64) int {
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

func (s *metricSeries) reset() {
	s.records = nil
}

// downsample groups ascending points into fixed-width buckets averaged by arithmetic mean.
// Params: points sorted ascending by timestamp and bucket width in milliseconds.
// Returns: one point per non-empty bucket, ascending by bucket start.
func downsample(points []domain.Point, resolutionMS int64) []domain.Point {
	out := make([]domain.Point, 0)
	var (
		current int64
		sum     float64
		count   int
	)
	for _, point := range points {
		bucket := BucketStart(point.Timestamp, resolutionMS)
		if count > 0 && bucket != current {
			out = append(out, domain.Point{Timestamp: current, Value: sum / float64(count)})
			sum, count = 0, 0
		}
		current = bucket
		sum += point.Value
		count++
	}
	if count > 0 {
		out = append(out, domain.Point{Timestamp: current, Value: sum / float64(count)})
	}
	return out
}

// BucketStart floors timestamp to a multiple of resolution (also for pre-epoch values).
// Params: timestamp and bucket width in milliseconds (>0).
// Returns: floor(ts / resolution) * resolution.
func BucketStart(ts, resolutionMS int64) int64 {
	bucket := ts / resolutionMS * resolutionMS
	if ts%resolutionMS != 0 && ts < 0 {
		bucket -= resolutionMS
	}
	return bucket
}
