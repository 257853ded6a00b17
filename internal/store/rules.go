package store

import (
	"slices"

	"github.com/google/uuid"

	"telemetry/internal/domain"
)

// maxIDAttempts bounds calls to the injected id generator before falling back to uuid.
const maxIDAttempts = 8

// ruleRegistry keeps alert rules in insertion order.
// Params: rule list and id generator.
// Returns: CRUD storage used by Store under its lock.
type ruleRegistry struct {
	rules []domain.Rule
	newID func() string
}

func newRuleRegistry(newID func() string, seed []domain.Rule) *ruleRegistry {
	if newID == nil {
		newID = uuid.NewString
	}
	registry := &ruleRegistry{newID: newID}
	for _, rule := range seed {
		if registry.indexOf(rule.ID) >= 0 {
			continue
		}
		registry.rules = append(registry.rules, rule.Clone())
	}
	return registry
}

func (r *ruleRegistry) list() []domain.Rule {
	out := make([]domain.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule.Clone())
	}
	return out
}

// create assigns a fresh id that does not collide with existing rules.
func (r *ruleRegistry) create(input domain.RuleInput) domain.Rule {
	id := r.newID()
	for attempt := 1; id == "" || r.indexOf(id) >= 0; attempt++ {
		if attempt >= maxIDAttempts {
			id = uuid.NewString()
			continue
		}
		id = r.newID()
	}
	rule := input.Build(id)
	r.rules = append(r.rules, rule)
	return rule.Clone()
}

func (r *ruleRegistry) update(id string, patch domain.RulePatch) bool {
	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.rules[i] = r.rules[i].Apply(patch)
	return true
}

func (r *ruleRegistry) delete(id string) bool {
	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.rules = slices.Delete(r.rules, i, i+1)
	return true
}

func (r *ruleRegistry) indexOf(id string) int {
	return slices.IndexFunc(r.rules, func(rule domain.Rule) bool {
		return rule.ID == id
	})
}
