package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultRuleID identifies built-in error-rate rule.
	DefaultRuleID = "error_rate_rule"
	// DefaultRuleMetric is the semantic label used when a rule omits metric.
	DefaultRuleMetric = "errors"
	// DefaultRuleWindowMinutes is applied when a rule omits windowMinutes.
	DefaultRuleWindowMinutes = 5.0
	// DefaultRuleSeverity is applied when a user rule omits severity.
	DefaultRuleSeverity = "warning"
)

// Rule is one error-rate alert rule.
// Params: identity, optional service scope (nil = all services), window, threshold, and severity.
// Returns: registry entry evaluated by alert engine.
type Rule struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Service       *string `json:"service"`
	Metric        string  `json:"metric"`
	WindowMinutes float64 `json:"windowMinutes"`
	Threshold     float64 `json:"threshold"`
	Severity      string  `json:"severity"`
}

// DefaultRule returns built-in rule installed on every new store.
func DefaultRule() Rule {
	return Rule{
		ID:            DefaultRuleID,
		Name:          "High error rate",
		Metric:        DefaultRuleMetric,
		WindowMinutes: DefaultRuleWindowMinutes,
		Threshold:     0.05,
		Severity:      "critical",
	}
}

// ServiceScope returns rule service or empty string for all-services rules.
func (r Rule) ServiceScope() string {
	if r.Service == nil {
		return ""
	}
	return *r.Service
}

// Clone returns deep copy so callers cannot mutate registry state.
func (r Rule) Clone() Rule {
	if r.Service != nil {
		service := *r.Service
		r.Service = &service
	}
	return r
}

// Apply merges patch into rule; omitted fields keep prior value.
// Params: partial update.
// Returns: merged rule (id is never changed).
func (r Rule) Apply(patch RulePatch) Rule {
	out := r.Clone()
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.ClearService {
		out.Service = nil
	} else if patch.Service != nil {
		service := *patch.Service
		out.Service = &service
	}
	if patch.Metric != nil {
		out.Metric = *patch.Metric
	}
	if patch.WindowMinutes != nil {
		out.WindowMinutes = *patch.WindowMinutes
	}
	if patch.Threshold != nil {
		out.Threshold = *patch.Threshold
	}
	if patch.Severity != nil {
		out.Severity = *patch.Severity
	}
	return out
}

// RuleInput is the create-rule request.
// Params: name and threshold are mandatory; remaining fields fall back to defaults.
// Returns: input converted by Build once an id is assigned.
type RuleInput struct {
	Name          string   `json:"name"`
	Service       *string  `json:"service"`
	Metric        string   `json:"metric,omitempty"`
	WindowMinutes *float64 `json:"windowMinutes,omitempty"`
	Threshold     *float64 `json:"threshold"`
	Severity      string   `json:"severity,omitempty"`
}

// Validate checks mandatory create fields.
// Params: none.
// Returns: validation error when name or threshold is missing.
func (in RuleInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError("name", "rule name is required")
	}
	if in.Threshold == nil {
		return NewValidationError("threshold", "rule threshold is required")
	}
	return nil
}

// Build converts input into a rule with defaults applied.
// Params: assigned rule id.
// Returns: complete rule.
func (in RuleInput) Build(id string) Rule {
	rule := Rule{
		ID:            id,
		Name:          in.Name,
		Metric:        in.Metric,
		WindowMinutes: DefaultRuleWindowMinutes,
		Severity:      in.Severity,
	}
	if in.Service != nil && *in.Service != "" {
		service := *in.Service
		rule.Service = &service
	}
	if rule.Metric == "" {
		rule.Metric = DefaultRuleMetric
	}
	if in.WindowMinutes != nil {
		rule.WindowMinutes = *in.WindowMinutes
	}
	if in.Threshold != nil {
		rule.Threshold = *in.Threshold
	}
	if rule.Severity == "" {
		rule.Severity = DefaultRuleSeverity
	}
	return rule
}

// RulePatch is a shallow partial update; nil fields are left untouched.
// ClearService resets scope to all services (JSON "service": null).
type RulePatch struct {
	Name          *string
	Service       *string
	ClearService  bool
	Metric        *string
	WindowMinutes *float64
	Threshold     *float64
	Severity      *string
}

// UnmarshalJSON decodes partial rule body keeping explicit nulls for service.
// Params: JSON object with any subset of rule fields.
// Returns: decode error for non-object bodies or mistyped fields.
func (p *RulePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode rule patch: %w", err)
	}
	decode := func(key string, dst any) error {
		body, ok := raw[key]
		if !ok || isJSONNull(body) {
			return nil
		}
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("decode rule patch %s: %w", key, err)
		}
		return nil
	}

	var next RulePatch
	if body, ok := raw["service"]; ok && isJSONNull(body) {
		next.ClearService = true
	}
	fields := []struct {
		key string
		dst any
	}{
		{"name", &next.Name},
		{"service", &next.Service},
		{"metric", &next.Metric},
		{"windowMinutes", &next.WindowMinutes},
		{"threshold", &next.Threshold},
		{"severity", &next.Severity},
	}
	for _, field := range fields {
		if err := decode(field.key, field.dst); err != nil {
			return err
		}
	}
	*p = next
	return nil
}

func isJSONNull(body json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(body), []byte("null"))
}
