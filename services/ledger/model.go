package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// GenesisHash is the previous hash of a user's first entry.
const GenesisHash = "GENESIS"

// ActivityDateLayout formats the activity date part of the award key.
const ActivityDateLayout = "2006-01-02"

// Balance is the running point total of one user.
type Balance struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	Balance   int64     `gorm:"column:balance;not null" json:"balance"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Balance) TableName() string {
	return "point_balances"
}

// Entry is one point award. (user_id, activity_id, activity_date) is unique and
// is the only guard against awarding the same activity twice.
type Entry struct {
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	UserID       string         `gorm:"column:user_id;not null;uniqueIndex:uq_point_ledger_activity,priority:1" json:"user_id"`
	ActivityID   string         `gorm:"column:activity_id;not null;uniqueIndex:uq_point_ledger_activity,priority:2" json:"activity_id"`
	ActivityDate string         `gorm:"column:activity_date;type:varchar(10);not null;uniqueIndex:uq_point_ledger_activity,priority:3" json:"activity_date"`
	Points       int64          `gorm:"column:points;not null" json:"points"`
	UserTaskID   string         `gorm:"column:user_task_id" json:"user_task_id"`
	PeriodKey    string         `gorm:"column:period_key;type:varchar(8)" json:"period_key"`
	Description  string         `gorm:"column:description" json:"description"`
	PreviousHash string         `gorm:"column:previous_hash" json:"previous_hash"`
	Hash         string         `gorm:"column:hash" json:"hash"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (Entry) TableName() string {
	return "point_ledger"
}

// Models lists the tables owned by the ledger.
func Models() []any {
	return []any{&Entry{}, &Balance{}}
}

// ActivityID is the award key of a task in a period.
func ActivityID(taskCode, periodKey string) string {
	return fmt.Sprintf("task:%s:%s", taskCode, periodKey)
}

func (m *Entry) HashFields() map[string]string {
	return map[string]string{
		"id":            m.ID,
		"user_id":       m.UserID,
		"activity_id":   m.ActivityID,
		"activity_date": m.ActivityDate,
		"points":        fmt.Sprintf("%d", m.Points),
		"user_task_id":  m.UserTaskID,
		"period_key":    m.PeriodKey,
		"description":   m.Description,
		"created_at":    m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash": m.PreviousHash,
	}
}

func (m *Entry) GenerateHash() string {
	fields := m.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}
