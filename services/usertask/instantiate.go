package usertask

import (
	"context"
	"time"

	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/period"
	"careerloop-engine/pkg/rediskey"
	"careerloop-engine/services/catalog"
	v "careerloop-engine/services/verification"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InstantiateParams struct {
	UserID    string
	PeriodKey string
	Mode      Mode
}

type InstantiateResult struct {
	Period    period.Period `json:"-"`
	PeriodKey string        `json:"period"`
	Mode      Mode          `json:"mode"`
	UserTasks []*UserTask   `json:"user_tasks"`
}

// DueAt is the end of the day after the definition's day offset, except for
// the period's last day which is due the same day.
func DueAt(p period.Period, dayOffset int) time.Time {
	day := min(max(dayOffset, 0)+1, period.Days-1)
	return period.EndOfDay(p.Day(day))
}

// Instantiate assigns the active catalog to a user for a period. Reset mode
// discards the period's tasks and evidence first; ensure mode only fills gaps.
func (s *Service) Instantiate(ctx context.Context, p InstantiateParams) (*InstantiateResult, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", p.UserID),
	)

	mode := p.Mode
	if mode == "" {
		mode = s.mode
	}
	if !mode.Valid() {
		return nil, errutil.BadRequest("mode must be reset or ensure", nil)
	}

	per, err := s.calc.Resolve(p.PeriodKey)
	if err != nil {
		return nil, errutil.BadRequest("invalid period", ErrInvalidPeriod)
	}
	zapLog = zapLog.With(zap.String("period", per.Key), zap.String("mode", string(mode)))

	if _, err := s.profile.Get(ctx, p.UserID); err != nil {
		return nil, err
	}

	release, err := s.Lock(ctx, rediskey.BuildUserPeriodKey(p.UserID, per.Key))
	if err != nil {
		return nil, err
	}
	defer release()

	defs, err := s.catalog.ActiveDefinitions(ctx)
	if err != nil {
		zapLog.Error("failed to load active definitions", zap.Error(err))
		return nil, err
	}

	rows := s.buildTasks(p.UserID, per, defs)

	var tasks []*UserTask
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch mode {
		case ModeReset:
			if err := s.deletePeriod(ctx, tx, p.UserID, per.Key); err != nil {
				return err
			}
			if err := s.tasks.WithTrx(tx).BatchCreate(ctx, rows); err != nil {
				return err
			}
		case ModeEnsure:
			if len(rows) > 0 {
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "user_id"}, {Name: "definition_id"}, {Name: "period_key"}},
					DoNothing: true,
				}).Create(&rows).Error; err != nil {
					return err
				}
			}
		}

		var err error
		tasks, err = s.listTasks(ctx, tx, p.UserID, per.Key)
		return err
	})
	if err != nil {
		zapLog.Error("failed to instantiate user tasks", zap.Error(err))
		return nil, err
	}

	if len(defs) == 0 {
		zapLog.Warn("catalog has no active definitions")
	}
	zapLog.Info("user tasks instantiated", zap.Int("tasks", len(tasks)))

	if tasks == nil {
		tasks = []*UserTask{}
	}
	return &InstantiateResult{Period: per, PeriodKey: per.Key, Mode: mode, UserTasks: tasks}, nil
}

func (s *Service) buildTasks(userID string, per period.Period, defs []catalog.TaskDefinition) []*UserTask {
	rows := make([]*UserTask, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, &UserTask{
			ID:           s.node.Generate().String(),
			UserID:       userID,
			DefinitionID: d.ID,
			PeriodKey:    per.Key,
			TaskCode:     d.Code,
			DueAt:        DueAt(per, d.DayOffset),
			Status:       v.StatusNotStarted,
			Notes:        encodeNotes(nil),
		})
	}
	return rows
}

func (s *Service) deletePeriod(ctx context.Context, tx *gorm.DB, userID, periodKey string) error {
	existing := tx.WithContext(ctx).Model(&UserTask{}).
		Select("id").
		Where("user_id = ? AND period_key = ?", userID, periodKey)

	if err := tx.WithContext(ctx).Where("user_task_id IN (?)", existing).Delete(&Evidence{}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Where("user_id = ? AND period_key = ?", userID, periodKey).Delete(&UserTask{}).Error
}
