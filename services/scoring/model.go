package scoring

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Breakdown counts a period's tasks by status.
type Breakdown struct {
	TasksTotal             int `json:"tasks_total"`
	TasksCompleted         int `json:"tasks_completed"`
	TasksPartiallyVerified int `json:"tasks_partially_verified"`
	TasksSubmitted         int `json:"tasks_submitted"`
	TasksNotStarted        int `json:"tasks_not_started"`
	TasksRejected          int `json:"tasks_rejected"`
}

// ScoreSummary is derived data: it is always recomputed from user tasks.
type ScoreSummary struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	UserID      string         `gorm:"column:user_id;not null;uniqueIndex:uq_score_summaries_user_period,priority:1" json:"user_id"`
	PeriodKey   string         `gorm:"column:period_key;type:varchar(8);not null;uniqueIndex:uq_score_summaries_user_period,priority:2" json:"period_key"`
	PointsTotal int            `gorm:"column:points_total;not null" json:"points_total"`
	Breakdown   datatypes.JSON `gorm:"column:breakdown" json:"breakdown"`
	StreakWeeks int            `gorm:"column:streak_weeks;not null" json:"streak_weeks"`
	ComputedAt  time.Time      `gorm:"column:computed_at" json:"computed_at"`
}

func (ScoreSummary) TableName() string {
	return "score_summaries"
}

func (s *ScoreSummary) Counts() Breakdown {
	var b Breakdown
	if len(s.Breakdown) > 0 {
		_ = json.Unmarshal(s.Breakdown, &b)
	}
	return b
}
