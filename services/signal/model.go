package signal

import (
	"encoding/json"
	"time"

	"careerloop-engine/services/verification"

	"gorm.io/datatypes"
)

// Signal is an observed external event about a user. Rows are insert-only.
type Signal struct {
	ID         string         `gorm:"column:id;primaryKey" json:"id"`
	UserID     string         `gorm:"column:user_id;not null;index:idx_signals_user_happened,priority:1;uniqueIndex:uq_signals_user_source_external,priority:1" json:"user_id"`
	Kind       string         `gorm:"column:kind;type:varchar(64);not null" json:"kind"`
	Actor      string         `gorm:"column:actor" json:"actor"`
	Source     string         `gorm:"column:source;type:varchar(32);not null;uniqueIndex:uq_signals_user_source_external,priority:2" json:"source"`
	ExternalID *string        `gorm:"column:external_id;uniqueIndex:uq_signals_user_source_external,priority:3" json:"external_id,omitempty"`
	HappenedAt time.Time      `gorm:"column:happened_at;not null;index:idx_signals_user_happened,priority:2" json:"happened_at"`
	Metadata   datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Signal) TableName() string {
	return "signals"
}

func (s *Signal) ToVerification() verification.Signal {
	meta := map[string]any{}
	if len(s.Metadata) > 0 {
		_ = json.Unmarshal(s.Metadata, &meta)
	}
	return verification.Signal{
		Kind:       s.Kind,
		Actor:      s.Actor,
		HappenedAt: s.HappenedAt,
		Metadata:   meta,
	}
}
