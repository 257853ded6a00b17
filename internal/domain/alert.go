package domain

import "time"

// AlertState is notification lifecycle state derived between evaluations.
// Params: firing/resolved state constants.
// Returns: transition label published to notification sinks.
type AlertState string

const (
	// AlertStateFiring indicates alert id appeared in the latest evaluation.
	AlertStateFiring AlertState = "firing"
	// AlertStateResolved indicates alert id disappeared since previous evaluation.
	AlertStateResolved AlertState = "resolved"
)

// Alert is one derived alert instance; it is recomputed on every evaluation.
// Params: deterministic id "<ruleId>:<service>", rule snapshot, observed error rate, and ack flag.
// Returns: active alert row.
type Alert struct {
	ID            string  `json:"id"`
	RuleID        string  `json:"ruleId"`
	Service       string  `json:"service"`
	Name          string  `json:"name"`
	Severity      string  `json:"severity"`
	Value         float64 `json:"value"`
	Threshold     float64 `json:"threshold"`
	WindowMinutes float64 `json:"windowMinutes"`
	Timestamp     int64   `json:"timestamp"`
	Acknowledged  bool    `json:"acknowledged"`
}

// AlertID builds deterministic alert instance identity.
// Params: rule id and service name.
// Returns: "<ruleId>:<service>".
func AlertID(ruleID, service string) string {
	return ruleID + ":" + service
}

// Notification is one alert state transition for outbound sinks.
// Params: transition state, alert snapshot, and detection time.
// Returns: payload for notify publishers.
type Notification struct {
	AlertID   string     `json:"alert_id"`
	State     AlertState `json:"state"`
	Alert     Alert      `json:"alert"`
	Timestamp time.Time  `json:"timestamp"`
}
