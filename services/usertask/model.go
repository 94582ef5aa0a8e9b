package usertask

import (
	"encoding/json"
	"time"

	"careerloop-engine/services/catalog"
	"careerloop-engine/services/profile"
	"careerloop-engine/services/verification"

	"gorm.io/datatypes"
)

type Mode string

const (
	// ModeReset deletes the period's tasks and evidence before recreating them.
	ModeReset Mode = "reset"
	// ModeEnsure only inserts missing tasks and never touches existing progress.
	ModeEnsure Mode = "ensure"
)

func (m Mode) Valid() bool {
	return m == ModeReset || m == ModeEnsure
}

// UserTask is one user's instance of a task definition for one period.
type UserTask struct {
	ID           string              `gorm:"column:id;primaryKey" json:"id"`
	UserID       string              `gorm:"column:user_id;not null;uniqueIndex:uq_user_tasks_user_definition_period,priority:1" json:"user_id"`
	DefinitionID string              `gorm:"column:definition_id;not null;uniqueIndex:uq_user_tasks_user_definition_period,priority:2" json:"definition_id"`
	PeriodKey    string              `gorm:"column:period_key;type:varchar(8);not null;uniqueIndex:uq_user_tasks_user_definition_period,priority:3;index" json:"period_key"`
	TaskCode     string              `gorm:"column:task_code;not null" json:"task_code"`
	DueAt        time.Time           `gorm:"column:due_at;not null" json:"due_at"`
	Status       verification.Status `gorm:"column:status;type:varchar(32);not null" json:"status"`
	ScoreAwarded int                 `gorm:"column:score_awarded;not null" json:"score_awarded"`
	Notes        datatypes.JSON      `gorm:"column:notes" json:"notes"`
	VerifiedAt   *time.Time          `gorm:"column:verified_at" json:"verified_at,omitempty"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Profile    *profile.Profile        `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Definition *catalog.TaskDefinition `gorm:"foreignKey:DefinitionID;references:ID;constraint:OnDelete:RESTRICT" json:"definition,omitempty"`
}

func (UserTask) TableName() string {
	return "user_tasks"
}

func (t *UserTask) NoteList() []string {
	if len(t.Notes) == 0 {
		return []string{}
	}
	var notes []string
	if err := json.Unmarshal(t.Notes, &notes); err != nil {
		return []string{}
	}
	return notes
}

func encodeNotes(notes []string) datatypes.JSON {
	if notes == nil {
		notes = []string{}
	}
	b, _ := json.Marshal(notes)
	return datatypes.JSON(b)
}

// Evidence is a user-submitted proof attached to one user task. Only the
// review fields change after insert.
type Evidence struct {
	ID         string                       `gorm:"column:id;primaryKey" json:"id"`
	UserTaskID string                       `gorm:"column:user_task_id;not null;index" json:"user_task_id"`
	UserID     string                       `gorm:"column:user_id;not null;index" json:"user_id"`
	Kind       verification.EvidenceKind    `gorm:"column:kind;type:varchar(16);not null" json:"kind"`
	URL        string                       `gorm:"column:url;type:text" json:"url,omitempty"`
	FileRef    string                       `gorm:"column:file_ref;type:text" json:"file_ref,omitempty"`
	Text       string                       `gorm:"column:text;type:text" json:"text,omitempty"`
	Payload    datatypes.JSON               `gorm:"column:payload" json:"payload,omitempty"`
	Outcome    verification.EvidenceOutcome `gorm:"column:outcome;type:varchar(16);not null" json:"outcome"`
	ReviewedBy string                       `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time                   `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time                    `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	UserTask *UserTask `gorm:"foreignKey:UserTaskID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Evidence) TableName() string {
	return "evidence"
}

// ToVerification converts the stored record into the engine's input shape.
func (e *Evidence) ToVerification() verification.Evidence {
	var payload map[string]any
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &payload)
	}
	return verification.Evidence{
		ID:        e.ID,
		Kind:      e.Kind,
		URL:       e.URL,
		FileRef:   e.FileRef,
		Text:      e.Text,
		Payload:   payload,
		Outcome:   e.Outcome,
		CreatedAt: e.CreatedAt,
	}
}

// Models lists the tables this package owns, in migration order.
func Models() []any {
	return []any{&UserTask{}, &Evidence{}}
}
