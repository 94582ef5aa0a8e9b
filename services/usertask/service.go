package usertask

import (
	"context"
	"errors"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/db/option"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/minio"
	"careerloop-engine/pkg/period"
	"careerloop-engine/pkg/redis"
	"careerloop-engine/pkg/repository"
	"careerloop-engine/services/catalog"
	"careerloop-engine/services/profile"
	v "careerloop-engine/services/verification"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUserTaskNotFound        = errors.New("user task not found")
	ErrEvidenceNotFound        = errors.New("evidence not found")
	ErrEvidenceKindNotAccepted = errors.New("evidence kind not accepted")
	ErrEvidenceObjectMissing   = errors.New("evidence object missing")
	ErrInvalidPeriod           = errors.New("invalid period")
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	calc    *period.Calculator
	catalog *catalog.Service
	profile *profile.Service
	objects minio.ObjectChecker
	locker  redis.Locker
	mode    Mode

	tasks    repository.Repository[UserTask]
	evidence repository.Repository[Evidence]
}

type ServiceParams struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Config  *config.Config `optional:"true"`
	Calc    *period.Calculator
	Catalog *catalog.Service
	Profile *profile.Service
	Objects minio.ObjectChecker `optional:"true"`
	Locker  redis.Locker        `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	mode := ModeReset
	if p.Config != nil && Mode(p.Config.Engine.DefaultMode).Valid() {
		mode = Mode(p.Config.Engine.DefaultMode)
	}
	locker := p.Locker
	if locker == nil {
		locker = redis.NoopLocker()
	}

	return &Service{
		db:       p.DB,
		node:     p.Node,
		calc:     p.Calc,
		catalog:  p.Catalog,
		profile:  p.Profile,
		objects:  p.Objects,
		locker:   locker,
		mode:     mode,
		tasks:    repository.ProvideStore[UserTask](p.DB),
		evidence: repository.ProvideStore[Evidence](p.DB),
	}
}

// DefaultMode is the instantiation mode used when a caller does not name one.
func (s *Service) DefaultMode() Mode {
	return s.mode
}

// Lock takes the optional advisory lock for one user and period.
func (s *Service) Lock(ctx context.Context, key string) (func(), error) {
	release, err := s.locker.TryLock(ctx, key)
	if errors.Is(err, redis.ErrLocked) {
		return nil, errutil.Conflict("another instantiate or verify run is in progress for this user", err)
	}
	return release, err
}

func (s *Service) Get(ctx context.Context, id string) (*UserTask, error) {
	if id == "" {
		return nil, errutil.NotFound("user task not found", ErrUserTaskNotFound)
	}
	task, err := s.tasks.FindOne(ctx, &UserTask{ID: id}, option.WithPreload("Definition"))
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errutil.NotFound("user task not found", ErrUserTaskNotFound)
	}
	return task, nil
}

// ListTasks returns the user's tasks for a period joined with their definitions.
func (s *Service) ListTasks(ctx context.Context, userID, periodKey string) ([]*UserTask, error) {
	return s.listTasks(ctx, s.db, userID, periodKey)
}

func (s *Service) listTasks(ctx context.Context, tx *gorm.DB, userID, periodKey string) ([]*UserTask, error) {
	var tasks []*UserTask
	if err := tx.WithContext(ctx).
		Preload("Definition").
		Where("user_id = ? AND period_key = ?", userID, periodKey).
		Order("due_at ASC").Order("task_code ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// EvidenceFor loads evidence grouped by user task id, oldest first.
func (s *Service) EvidenceFor(ctx context.Context, taskIDs []string) (map[string][]*Evidence, error) {
	out := make(map[string][]*Evidence, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}

	rows, err := s.evidence.Find(ctx, nil,
		option.ApplyOperator(option.Condition{Field: "user_task_id", Operator: option.IN, Value: taskIDs}),
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "asc", Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return nil, err
	}
	for _, e := range rows {
		out[e.UserTaskID] = append(out[e.UserTaskID], e)
	}
	return out, nil
}

// Verification is the persisted result of one engine pass over a task.
type Verification struct {
	Status     v.Status
	Points     int
	Notes      []string
	VerifiedAt *time.Time
}

// RecordVerification stores a merged engine result. The row is only written
// when it still holds the status the caller read, so a concurrent reviewer
// rejection is not overwritten.
func (s *Service) RecordVerification(ctx context.Context, task *UserTask, r Verification) error {
	return s.RecordVerificationTx(ctx, s.db, task, r)
}

// RecordVerificationTx is RecordVerification on tx.
func (s *Service) RecordVerificationTx(ctx context.Context, tx *gorm.DB, task *UserTask, r Verification) error {
	updates := map[string]any{
		"status":        r.Status,
		"score_awarded": max(r.Points, 0),
		"notes":         encodeNotes(r.Notes),
		"updated_at":    time.Now(),
	}
	if r.VerifiedAt != nil {
		updates["verified_at"] = *r.VerifiedAt
	}

	res := tx.WithContext(ctx).Model(&UserTask{}).
		Where("id = ? AND status = ?", task.ID, task.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("user task changed during verification", ErrUserTaskNotFound)
	}
	return nil
}

// Reject marks a task REJECTED with zero points. Only reviewers call this.
func (s *Service) Reject(ctx context.Context, id, reviewer, reason string) (*UserTask, error) {
	zapLog := zap.L().With(zap.String("user_task_id", id), zap.String("reviewer", reviewer))

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(task.Status, v.StatusRejected) {
		return nil, errutil.Conflict("task cannot be rejected from status "+string(task.Status), nil)
	}

	notes := []string{"rejected by " + reviewer}
	if reason != "" {
		notes = append(notes, reason)
	}
	updates := map[string]any{
		"status":        v.StatusRejected,
		"score_awarded": 0,
		"notes":         encodeNotes(notes),
		"updated_at":    time.Now(),
	}
	if err := s.tasks.Update(ctx, id, &updates); err != nil {
		zapLog.Error("failed to reject user task", zap.Error(err))
		return nil, err
	}

	zapLog.Info("user task rejected")
	return s.Get(ctx, id)
}
