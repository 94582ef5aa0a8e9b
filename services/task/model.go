package task

import (
	"time"

	"gorm.io/datatypes"
)

type Kind string

const (
	KindInstantiate Kind = "instantiate"
	KindVerify      Kind = "verify"
)

func (k Kind) Valid() bool {
	return k == KindInstantiate || k == KindVerify
}

const (
	JobPending = "pending"
	JobRunning = "running"
	JobSuccess = "success"
	JobFailed  = "failed"
)

// Job is an execution record for one batch run over every profile.
type Job struct {
	ID          string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	RunCode     string         `gorm:"column:run_code;uniqueIndex;type:varchar(32);not null" json:"run_code"`
	Kind        Kind           `gorm:"column:kind;type:varchar(20);index;not null" json:"kind"`
	PeriodKey   string         `gorm:"column:period_key;type:varchar(8);not null" json:"period"`
	Mode        string         `gorm:"column:mode;type:varchar(10)" json:"mode,omitempty"`
	Status      string         `gorm:"column:status;type:varchar(20);default:'pending'" json:"status"` // pending|running|success|failed
	Total       int            `gorm:"column:total;not null;default:0" json:"total"`
	Succeeded   int            `gorm:"column:succeeded;not null;default:0" json:"succeeded"`
	Failed      int            `gorm:"column:failed;not null;default:0" json:"failed"`
	ErrorMsg    string         `gorm:"column:error_msg;type:text" json:"error_msg,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Job) TableName() string {
	return "batch_jobs"
}

// Done reports whether every user of the batch has been processed.
func (j *Job) Done() bool {
	return j.Succeeded+j.Failed >= j.Total
}

// UserPayload is the asynq payload of one per-user task.
type UserPayload struct {
	JobID     string `json:"job_id,omitempty"`
	UserID    string `json:"user_id"`
	PeriodKey string `json:"period"`
	Mode      string `json:"mode,omitempty"`
}

// BatchPayload is the asynq payload of a scheduled fan-out.
type BatchPayload struct {
	PeriodKey string `json:"period,omitempty"`
	Mode      string `json:"mode,omitempty"`
}
