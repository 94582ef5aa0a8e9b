package verification

import (
	"fmt"
	"strings"
)

// Engine dispatches verification to the rule registered for a task code. It
// performs no I/O.
type Engine struct {
	registry *Registry
	bonuses  *BonusEvaluator
}

func NewEngine(registry *Registry, bonuses *BonusEvaluator) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Engine{registry: registry, bonuses: bonuses}
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) Verify(in Input) Outcome {
	rule, ok := e.registry.Lookup(in.Definition.Code)
	if !ok {
		return unknownCode(in)
	}

	eval := rule.Evaluate(in)
	out := eval.Outcome
	if out.Status == StatusVerified {
		out = e.applyBonuses(out, in.Definition.Bonuses, eval.Facts)
	}

	out.Points = max(out.Points, 0)
	if limit := e.MaxPoints(in.Definition); out.Points > limit {
		out.Points = limit
	}
	return out
}

func (e *Engine) applyBonuses(out Outcome, bonuses []Bonus, facts map[string]any) Outcome {
	if e.bonuses == nil || len(bonuses) == 0 {
		return out
	}
	for _, b := range bonuses {
		if b.Points <= 0 || strings.TrimSpace(b.Expression) == "" {
			continue
		}
		matched, err := e.bonuses.Matches(b.Expression, facts)
		if err != nil {
			out.Notes = append(out.Notes, fmt.Sprintf("bonus %s skipped: %v", b.Name, err))
			continue
		}
		if matched {
			out.Points += b.Points
			out.Notes = append(out.Notes, fmt.Sprintf("+%d points for %s", b.Points, b.Name))
		}
	}
	return out
}

// MaxPoints is the upper bound any outcome for def may reach.
func (e *Engine) MaxPoints(def Definition) int {
	limit := max(def.BasePoints, 0)
	if rule, ok := e.registry.Lookup(def.Code); ok {
		limit += rule.MaxBonus()
		for _, b := range def.Bonuses {
			if b.Points > 0 {
				limit += b.Points
			}
		}
	}
	return limit
}

func unknownCode(in Input) Outcome {
	note := fmt.Sprintf("no verification rule for %s", in.Definition.Code)
	if len(Considered(in.Evidence)) == 0 {
		return Outcome{Status: StatusNotStarted, Notes: []string{note}}
	}
	base := max(in.Definition.BasePoints, 0)
	return Outcome{
		Status: StatusSubmitted,
		Points: base * DefaultFraction / 100,
		Notes:  []string{note, "pending manual review"},
	}
}
