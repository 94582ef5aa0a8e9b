package verification

import (
	"time"
)

type Status string

const (
	StatusNotStarted        Status = "NOT_STARTED"
	StatusSubmitted         Status = "SUBMITTED"
	StatusPartiallyVerified Status = "PARTIALLY_VERIFIED"
	StatusVerified          Status = "VERIFIED"
	StatusRejected          Status = "REJECTED"
)

// Rank orders the statuses the engine may produce. REJECTED sits outside the
// order because only a reviewer sets it.
func (s Status) Rank() int {
	switch s {
	case StatusNotStarted:
		return 0
	case StatusSubmitted:
		return 1
	case StatusPartiallyVerified:
		return 2
	case StatusVerified:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.Rank() >= 0 || s == StatusRejected
}

type EvidenceKind string

const (
	EvidenceURL        EvidenceKind = "url"
	EvidenceFile       EvidenceKind = "file"
	EvidenceScreenshot EvidenceKind = "screenshot"
	EvidenceExport     EvidenceKind = "export"
	EvidenceText       EvidenceKind = "text"
)

var AllEvidenceKinds = []EvidenceKind{EvidenceURL, EvidenceFile, EvidenceScreenshot, EvidenceExport, EvidenceText}

func (k EvidenceKind) Valid() bool {
	for _, v := range AllEvidenceKinds {
		if v == k {
			return true
		}
	}
	return false
}

type EvidenceOutcome string

const (
	OutcomePending  EvidenceOutcome = "pending"
	OutcomeApproved EvidenceOutcome = "approved"
	OutcomeRejected EvidenceOutcome = "rejected"
)

type Evidence struct {
	ID        string
	Kind      EvidenceKind
	URL       string
	FileRef   string
	Text      string
	Payload   map[string]any
	Outcome   EvidenceOutcome
	CreatedAt time.Time
}

type Signal struct {
	Kind       string
	Actor      string
	HappenedAt time.Time
	Metadata   map[string]any
}

// Window is the inclusive period range signals must fall into.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Bonus is a catalog-configured CEL bonus applied on top of VERIFIED base points.
type Bonus struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Points     int    `json:"points"`
}

type Definition struct {
	Code       string
	BasePoints int
	Bonuses    []Bonus
}

type Input struct {
	Definition Definition
	Evidence   []Evidence
	Signals    []Signal
	Window     Window
}

type Outcome struct {
	Status Status
	Points int
	Notes  []string
}

// Evaluation is what a rule returns: the outcome plus the facts catalog
// bonuses are evaluated against.
type Evaluation struct {
	Outcome
	Facts map[string]any
}
