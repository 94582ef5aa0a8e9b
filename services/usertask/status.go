package usertask

import (
	v "careerloop-engine/services/verification"
)

// transitions lists every status change the system may make. Staying in the
// same status is always allowed. Below VERIFIED a task may fall back when a
// reviewer rejects the evidence behind it.
var transitions = map[v.Status][]v.Status{
	v.StatusNotStarted:        {v.StatusSubmitted, v.StatusPartiallyVerified, v.StatusVerified, v.StatusRejected},
	v.StatusSubmitted:         {v.StatusNotStarted, v.StatusPartiallyVerified, v.StatusVerified, v.StatusRejected},
	v.StatusPartiallyVerified: {v.StatusNotStarted, v.StatusSubmitted, v.StatusVerified, v.StatusRejected},
	v.StatusVerified:          {v.StatusRejected},
	v.StatusRejected:          {},
}

func CanTransition(from, to v.Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Merged is the stored state after folding in an engine outcome.
type Merged struct {
	Status  v.Status
	Points  int
	Changed bool
	// Kept reports that the stored state won over the outcome.
	Kept bool
}

// Merge folds an engine outcome into the stored status. VERIFIED never
// regresses and REJECTED is only changed by a reviewer. Below VERIFIED the
// outcome re-evaluates the whole evidence set, so it replaces the stored
// status and points.
func Merge(stored v.Status, storedPoints int, out v.Outcome) Merged {
	if stored == v.StatusRejected {
		return Merged{Status: stored, Points: storedPoints, Kept: true}
	}
	if stored == v.StatusVerified && out.Status != v.StatusVerified {
		return Merged{Status: stored, Points: storedPoints, Kept: true}
	}
	if !CanTransition(stored, out.Status) {
		return Merged{Status: stored, Points: storedPoints, Kept: true}
	}
	return Merged{
		Status:  out.Status,
		Points:  out.Points,
		Changed: out.Status != stored || out.Points != storedPoints,
	}
}
