package verification

import (
	"fmt"
	"time"

	"careerloop-engine/pkg/celengine"

	"k8s.io/apimachinery/pkg/util/sets"
)

// DefaultFraction is the share of base points granted to evidence that is not
// yet corroborated when a rule does not configure its own fraction.
const DefaultFraction = 50

// Rule decides the outcome of one task code.
type Rule interface {
	Code() string
	Evaluate(in Input) Evaluation
	MaxBonus() int
}

// ThresholdBonus is a built-in bonus a rule grants on top of VERIFIED base points.
type ThresholdBonus struct {
	Label      string
	MinSignals int
	MinActors  int
	Points     int
}

func (b ThresholdBonus) met(signals, actors int) bool {
	return signals >= b.MinSignals && actors >= b.MinActors
}

// ContentCheck inspects evidence content and reports progress towards the
// amount the rule requires.
type ContentCheck func(evidence []Evidence) (observed, required int)

// ThresholdRule is the shared rule shape: evidence presence, evidence kind and
// signal counts within the window.
type ThresholdRule struct {
	RuleCode string

	// SignalKinds lists which signal kinds corroborate the task.
	SignalKinds []string
	MinSignals  int
	MinActors   int
	MinDays     int
	// RequireAll switches from "any threshold met" to "every threshold met".
	RequireAll bool

	// Fractions is the percent of base points granted per evidence kind while
	// the task is still SUBMITTED.
	Fractions       map[EvidenceKind]int
	DefaultFraction int

	// Evidence-only rules verify on one of these kinds or on Content.
	VerifyingKinds []EvidenceKind
	Content        ContentCheck

	Bonuses []ThresholdBonus
}

func (r *ThresholdRule) Code() string {
	return r.RuleCode
}

func (r *ThresholdRule) MaxBonus() int {
	total := 0
	for _, b := range r.Bonuses {
		if b.Points > 0 {
			total += b.Points
		}
	}
	return total
}

type threshold struct {
	name     string
	observed int
	required int
}

func (t threshold) met() bool {
	return t.observed >= t.required
}

func (t threshold) ratio() float64 {
	return float64(min(t.observed, t.required)) / float64(t.required)
}

func (r *ThresholdRule) thresholds(f Facts) []threshold {
	out := make([]threshold, 0, 3)
	if r.MinSignals > 0 {
		out = append(out, threshold{"signals", f.SignalCount, r.MinSignals})
	}
	if r.MinActors > 0 {
		out = append(out, threshold{"distinct actors", f.UniqueActors, r.MinActors})
	}
	if r.MinDays > 0 {
		out = append(out, threshold{"active days", f.DaysActive, r.MinDays})
	}
	return out
}

func (r *ThresholdRule) Evaluate(in Input) Evaluation {
	base := max(in.Definition.BasePoints, 0)
	considered := Considered(in.Evidence)
	facts := CollectFacts(considered, FilterSignals(in.Signals, in.Window, r.SignalKinds...), in.Window)

	eval := Evaluation{Facts: facts.Map(base)}
	if len(considered) == 0 {
		eval.Status = StatusNotStarted
		eval.Notes = []string{"no evidence submitted"}
		return eval
	}

	if approved := approvedCount(considered); approved > 0 {
		eval.Status = StatusVerified
		eval.Points = base
		eval.Notes = []string{"evidence approved by reviewer"}
		return eval
	}

	checks := r.thresholds(facts)
	if len(checks) == 0 {
		return r.evaluateEvidenceOnly(eval, base, considered, facts)
	}

	if r.satisfied(checks) {
		eval.Status = StatusVerified
		eval.Points = base
		eval.Notes = append(eval.Notes, fmt.Sprintf("%d corroborating signals from %d distinct actors", facts.SignalCount, facts.UniqueActors))
		for _, b := range r.Bonuses {
			if b.met(facts.SignalCount, facts.UniqueActors) && b.Points > 0 {
				eval.Points += b.Points
				eval.Notes = append(eval.Notes, fmt.Sprintf("+%d points for %s", b.Points, b.Label))
			}
		}
		return eval
	}

	if facts.SignalCount == 0 {
		return r.submitted(eval, base, facts)
	}

	t := r.progress(checks)
	eval.Status = StatusPartiallyVerified
	eval.Points = prorate(base, t.observed, t.required)
	eval.Notes = append(eval.Notes, fmt.Sprintf("%d of %d %s observed", t.observed, t.required, t.name))
	return eval
}

func (r *ThresholdRule) evaluateEvidenceOnly(eval Evaluation, base int, considered []Evidence, facts Facts) Evaluation {
	for _, k := range r.VerifyingKinds {
		if facts.Kinds.Has(k) {
			eval.Status = StatusVerified
			eval.Points = base
			eval.Notes = append(eval.Notes, fmt.Sprintf("verified by %s evidence", k))
			return eval
		}
	}

	if r.Content != nil {
		observed, required := r.Content(considered)
		switch {
		case required > 0 && observed >= required:
			eval.Status = StatusVerified
			eval.Points = base
			eval.Notes = append(eval.Notes, fmt.Sprintf("evidence content complete (%d/%d)", observed, required))
			return eval
		case required > 0 && observed > 0:
			eval.Status = StatusPartiallyVerified
			eval.Points = prorate(base, observed, required)
			eval.Notes = append(eval.Notes, fmt.Sprintf("evidence content partial (%d/%d)", observed, required))
			return eval
		}
	}

	return r.submitted(eval, base, facts)
}

func (r *ThresholdRule) satisfied(checks []threshold) bool {
	if r.RequireAll {
		for _, t := range checks {
			if !t.met() {
				return false
			}
		}
		return true
	}
	for _, t := range checks {
		if t.met() {
			return true
		}
	}
	return false
}

// progress picks the threshold that drives proration: the weakest one when all
// are required, otherwise the strongest.
func (r *ThresholdRule) progress(checks []threshold) threshold {
	pick := checks[0]
	for _, t := range checks[1:] {
		if r.RequireAll && t.ratio() < pick.ratio() {
			pick = t
		}
		if !r.RequireAll && t.ratio() > pick.ratio() {
			pick = t
		}
	}
	return pick
}

func (r *ThresholdRule) submitted(eval Evaluation, base int, facts Facts) Evaluation {
	kind, pct := r.bestFraction(facts.Kinds)
	eval.Status = StatusSubmitted
	eval.Points = base * pct / 100
	eval.Notes = append(eval.Notes, fmt.Sprintf("awaiting corroboration, %d%% credit for %s evidence", pct, kind))
	return eval
}

func (r *ThresholdRule) bestFraction(kinds sets.Set[EvidenceKind]) (EvidenceKind, int) {
	fallback := r.DefaultFraction
	if fallback <= 0 {
		fallback = DefaultFraction
	}

	var best EvidenceKind
	pct := -1
	for _, k := range sets.List(kinds) {
		v, ok := r.Fractions[k]
		if !ok {
			v = fallback
		}
		v = clampPercent(v)
		if v > pct {
			best, pct = k, v
		}
	}
	if pct < 0 {
		return best, clampPercent(fallback)
	}
	return best, pct
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}

func prorate(base, observed, required int) int {
	if required <= 0 || base <= 0 || observed <= 0 {
		return 0
	}
	return base * min(observed, required) / required
}

func approvedCount(evidence []Evidence) int {
	n := 0
	for _, e := range evidence {
		if e.Outcome == OutcomeApproved {
			n++
		}
	}
	return n
}

// Considered drops evidence a reviewer rejected.
func Considered(evidence []Evidence) []Evidence {
	out := make([]Evidence, 0, len(evidence))
	for _, e := range evidence {
		if e.Outcome == OutcomeRejected {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterSignals keeps signals inside the window whose kind is one of kinds.
// No kinds means no signal corroborates the task.
func FilterSignals(signals []Signal, w Window, kinds ...string) []Signal {
	if len(kinds) == 0 {
		return nil
	}
	allowed := sets.New(kinds...)
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if allowed.Has(s.Kind) && w.Contains(s.HappenedAt) {
			out = append(out, s)
		}
	}
	return out
}

// Facts are the observations a rule computes and catalog bonuses read.
type Facts struct {
	SignalCount    int
	UniqueActors   int
	DaysActive     int
	EvidenceCount  int
	Kinds          sets.Set[EvidenceKind]
	SignalKinds    map[string]int
	DomainVerified bool
	ExportItems    int
}

func CollectFacts(evidence []Evidence, signals []Signal, w Window) Facts {
	loc := w.Start.Location()
	if loc == nil {
		loc = time.UTC
	}

	actors := sets.New[string]()
	days := sets.New[string]()
	byKind := make(map[string]int)
	for _, s := range signals {
		if s.Actor != "" {
			actors.Insert(s.Actor)
		}
		days.Insert(s.HappenedAt.In(loc).Format(time.DateOnly))
		byKind[s.Kind]++
	}

	f := Facts{
		SignalCount:   len(signals),
		UniqueActors:  actors.Len(),
		DaysActive:    days.Len(),
		EvidenceCount: len(evidence),
		Kinds:         sets.New[EvidenceKind](),
		SignalKinds:   byKind,
	}
	for _, e := range evidence {
		f.Kinds.Insert(e.Kind)
		if v, ok := e.Payload[PayloadDomainVerified].(bool); ok && v {
			f.DomainVerified = true
		}
		f.ExportItems = max(f.ExportItems, exportItems(e))
	}
	return f
}

// Map exposes the facts under the variable names bonus expressions use.
func (f Facts) Map(base int) map[string]any {
	kinds := make([]string, 0, f.Kinds.Len())
	for _, k := range sets.List(f.Kinds) {
		kinds = append(kinds, string(k))
	}

	counts := make(map[string]int64, len(f.SignalKinds))
	for k, v := range f.SignalKinds {
		counts[k] = int64(v)
	}

	return map[string]any{
		celengine.FactSignalCount:    int64(f.SignalCount),
		celengine.FactUniqueActors:   int64(f.UniqueActors),
		celengine.FactDaysActive:     int64(f.DaysActive),
		celengine.FactEvidenceCount:  int64(f.EvidenceCount),
		celengine.FactEvidenceKinds:  kinds,
		celengine.FactKindCounts:     counts,
		celengine.FactDomainVerified: f.DomainVerified,
		celengine.FactExportItems:    int64(f.ExportItems),
		celengine.FactBasePoints:     int64(base),
	}
}
