package catalog

import (
	"encoding/json"
	"time"

	"careerloop-engine/pkg/db"
	"careerloop-engine/services/verification"

	"gorm.io/datatypes"
)

type Vertical string

const (
	VerticalLinkedIn Vertical = "linkedin"
	VerticalGitHub   Vertical = "github"
	VerticalCareer   Vertical = "career"
	VerticalJobHunt  Vertical = "jobhunt"
)

func (v Vertical) Valid() bool {
	switch v {
	case VerticalLinkedIn, VerticalGitHub, VerticalCareer, VerticalJobHunt:
		return true
	}
	return false
}

// TaskDefinition is a recurring activity assigned to every user each period.
type TaskDefinition struct {
	ID                    string         `gorm:"column:id;primaryKey" json:"id"`
	Code                  string         `gorm:"column:code;uniqueIndex;not null" json:"code"`
	Vertical              Vertical       `gorm:"column:vertical;type:varchar(32);not null" json:"vertical"`
	Title                 string         `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Description           string         `gorm:"column:description;type:text" json:"description"`
	AcceptedEvidenceKinds db.StringArray `gorm:"column:accepted_evidence_kinds" json:"accepted_evidence_kinds"`
	BasePoints            int            `gorm:"column:base_points;not null" json:"base_points"`
	BonusRules            datatypes.JSON `gorm:"column:bonus_rules" json:"bonus_rules"`
	DayOffset             int            `gorm:"column:day_offset;not null" json:"day_offset"`
	Active                bool           `gorm:"column:active;not null" json:"active"`
	CreatedAt             time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (TaskDefinition) TableName() string {
	return "task_definitions"
}

func (d *TaskDefinition) Accepts(kind verification.EvidenceKind) bool {
	return d.AcceptedEvidenceKinds.Contains(string(kind))
}

func (d *TaskDefinition) Bonuses() ([]verification.Bonus, error) {
	if len(d.BonusRules) == 0 {
		return nil, nil
	}
	var out []verification.Bonus
	if err := json.Unmarshal(d.BonusRules, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EngineDefinition is the engine's view of the definition. Unreadable bonus rules are
// dropped rather than failing verification.
func (d *TaskDefinition) EngineDefinition() verification.Definition {
	bonuses, _ := d.Bonuses()
	return verification.Definition{
		Code:       d.Code,
		BasePoints: d.BasePoints,
		Bonuses:    bonuses,
	}
}

func encodeBonuses(bonuses []verification.Bonus) (datatypes.JSON, error) {
	if bonuses == nil {
		bonuses = []verification.Bonus{}
	}
	b, err := json.Marshal(bonuses)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func kindsToArray(kinds []verification.EvidenceKind) db.StringArray {
	out := make(db.StringArray, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}
