package domain

// Metric is one stored numeric observation.
type Metric struct {
	Service   string  `json:"service"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// LogRecord is one stored log line.
type LogRecord struct {
	Service   string `json:"service"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Point is one element of a metric series (raw sample or bucket mean).
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Record holds exactly one normalized telemetry record.
// Params: Metric or Log is set, never both.
// Returns: validator output dispatched to the matching store.
type Record struct {
	Metric *Metric
	Log    *LogRecord
}
