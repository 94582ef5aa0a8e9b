package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/period"
	"careerloop-engine/pkg/repository"
	"careerloop-engine/services/usertask"
	v "careerloop-engine/services/verification"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSummaryNotFound = errors.New("score summary not found")

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	calc *period.Calculator

	summaries repository.Repository[ScoreSummary]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Calc *period.Calculator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		calc:      p.Calc,
		summaries: repository.ProvideStore[ScoreSummary](p.DB),
	}
}

type taskRow struct {
	Status       v.Status
	ScoreAwarded int
}

// Tally sums score_awarded over every task and counts statuses. Rejecting a
// task zeroes its points, so rejected tasks add nothing in practice.
func Tally(statuses []v.Status, points []int) (int, Breakdown) {
	var (
		total int
		b     Breakdown
	)
	for i, st := range statuses {
		b.TasksTotal++
		switch st {
		case v.StatusVerified:
			b.TasksCompleted++
		case v.StatusPartiallyVerified:
			b.TasksPartiallyVerified++
		case v.StatusSubmitted:
			b.TasksSubmitted++
		case v.StatusRejected:
			b.TasksRejected++
		default:
			b.TasksNotStarted++
		}
		if i < len(points) {
			total += max(points[i], 0)
		}
	}
	return total, b
}

// Recompute rebuilds the user's summary for the period from the stored user
// tasks and upserts it. It never adds deltas, so running it twice is harmless.
func (s *Service) Recompute(ctx context.Context, userID, periodKey string) (*ScoreSummary, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", userID),
		zap.String("period", periodKey),
	)

	per, err := s.calc.Resolve(periodKey)
	if err != nil {
		return nil, errutil.BadRequest("invalid period", err)
	}

	var rows []taskRow
	if err := s.db.WithContext(ctx).Model(&usertask.UserTask{}).
		Select("status", "score_awarded").
		Where("user_id = ? AND period_key = ?", userID, per.Key).
		Find(&rows).Error; err != nil {
		zapLog.Error("failed to load user tasks", zap.Error(err))
		return nil, err
	}

	statuses := make([]v.Status, len(rows))
	points := make([]int, len(rows))
	for i, r := range rows {
		statuses[i] = r.Status
		points[i] = r.ScoreAwarded
	}
	total, breakdown := Tally(statuses, points)

	streak, err := s.streak(ctx, userID, per, breakdown)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(breakdown)
	if err != nil {
		return nil, err
	}

	summary := &ScoreSummary{
		ID:          s.node.Generate().String(),
		UserID:      userID,
		PeriodKey:   per.Key,
		PointsTotal: total,
		Breakdown:   datatypes.JSON(raw),
		StreakWeeks: streak,
		ComputedAt:  time.Now(),
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "period_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"points_total", "breakdown", "streak_weeks", "computed_at"}),
	}).Create(summary).Error; err != nil {
		zapLog.Error("failed to upsert score summary", zap.Error(err))
		return nil, err
	}

	stored, err := s.summaries.FindOne(ctx, &ScoreSummary{UserID: userID, PeriodKey: per.Key})
	if err != nil {
		return nil, err
	}

	zapLog.Debug("score recomputed", zap.Int("points_total", total), zap.Int("streak_weeks", streak))
	return stored, nil
}

// streak extends the previous period's streak when this period has a verified
// task, and resets it otherwise.
func (s *Service) streak(ctx context.Context, userID string, per period.Period, b Breakdown) (int, error) {
	if b.TasksCompleted == 0 {
		return 0, nil
	}
	prev, err := s.summaries.FindOne(ctx, &ScoreSummary{UserID: userID, PeriodKey: per.Prev().Key})
	if err != nil {
		return 0, err
	}
	if prev == nil {
		return 1, nil
	}
	return prev.StreakWeeks + 1, nil
}

func (s *Service) Get(ctx context.Context, userID, periodKey string) (*ScoreSummary, error) {
	per, err := s.calc.Resolve(periodKey)
	if err != nil {
		return nil, errutil.BadRequest("invalid period", err)
	}
	if userID == "" {
		return nil, errutil.NotFound("score summary not found", ErrSummaryNotFound)
	}
	summary, err := s.summaries.FindOne(ctx, &ScoreSummary{UserID: userID, PeriodKey: per.Key})
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, errutil.NotFound("score summary not found", ErrSummaryNotFound)
	}
	return summary, nil
}
