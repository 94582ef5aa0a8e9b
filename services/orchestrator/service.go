package orchestrator

import (
	"context"
	"fmt"
	"time"

	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/period"
	"careerloop-engine/pkg/rediskey"
	"careerloop-engine/services/ledger"
	"careerloop-engine/services/profile"
	"careerloop-engine/services/scoring"
	"careerloop-engine/services/signal"
	"careerloop-engine/services/usertask"
	v "careerloop-engine/services/verification"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	calc     *period.Calculator
	engine   *v.Engine
	profile  *profile.Service
	tasks    *usertask.Service
	signals  *signal.Service
	scoring  *scoring.Service
	ledger   *ledger.Service
	notifier Notifier
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Calc     *period.Calculator
	Engine   *v.Engine
	Profile  *profile.Service
	Tasks    *usertask.Service
	Signals  *signal.Service
	Scoring  *scoring.Service
	Ledger   *ledger.Service
	Notifier Notifier `optional:"true"`
}

func NewService(p Params) *Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &Service{
		db:       p.DB,
		calc:     p.Calc,
		engine:   p.Engine,
		profile:  p.Profile,
		tasks:    p.Tasks,
		signals:  p.Signals,
		scoring:  p.Scoring,
		ledger:   p.Ledger,
		notifier: notifier,
	}
}

type VerifyParams struct {
	UserID    string
	PeriodKey string
}

// TaskResult reports one task of a Verify pass, changed or not.
type TaskResult struct {
	TaskID         string   `json:"task_id"`
	TaskCode       string   `json:"task_code"`
	PreviousStatus v.Status `json:"previous_status"`
	NewStatus      v.Status `json:"new_status"`
	PreviousPoints int      `json:"previous_points"`
	NewPoints      int      `json:"new_points"`
	Notes          []string `json:"notes"`
	Awarded        bool     `json:"awarded"`
}

type VerifyResult struct {
	Period      period.Period `json:"-"`
	PeriodKey   string        `json:"period"`
	Results     []TaskResult  `json:"results"`
	TotalPoints int           `json:"total_points"`
	StreakWeeks int           `json:"streak_weeks"`
}

// Verify runs the rule engine over every task the user has in the period,
// persists merged outcomes, awards newly verified tasks once and recomputes
// the period score. Only an unknown user or period fails the whole call.
func (s *Service) Verify(ctx context.Context, p VerifyParams) (*VerifyResult, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", p.UserID),
	)

	per, err := s.calc.Resolve(p.PeriodKey)
	if err != nil {
		return nil, errutil.BadRequest("invalid period", usertask.ErrInvalidPeriod)
	}
	zapLog = zapLog.With(zap.String("period", per.Key))

	if _, err := s.profile.Get(ctx, p.UserID); err != nil {
		return nil, err
	}

	release, err := s.tasks.Lock(ctx, rediskey.BuildUserPeriodKey(p.UserID, per.Key))
	if err != nil {
		return nil, err
	}
	defer release()

	tasks, err := s.tasks.ListTasks(ctx, p.UserID, per.Key)
	if err != nil {
		zapLog.Error("failed to load user tasks", zap.Error(err))
		return nil, err
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	evidence, err := s.tasks.EvidenceFor(ctx, ids)
	if err != nil {
		zapLog.Error("failed to load evidence", zap.Error(err))
		return nil, err
	}

	window := v.Window{Start: per.Start, End: per.End}
	signals, err := s.signals.ForVerification(ctx, p.UserID, window)
	if err != nil {
		zapLog.Error("failed to load signals", zap.Error(err))
		return nil, err
	}

	out := &VerifyResult{Period: per, PeriodKey: per.Key, Results: make([]TaskResult, 0, len(tasks))}
	for _, t := range tasks {
		res := s.verifyTask(ctx, per, t, evidence[t.ID], signals, window)
		out.Results = append(out.Results, res)
	}

	summary, err := s.scoring.Recompute(ctx, p.UserID, per.Key)
	if err != nil {
		zapLog.Error("failed to recompute score, reporting pass total", zap.Error(err))
		out.TotalPoints = passTotal(out.Results)
	} else {
		out.TotalPoints = summary.PointsTotal
		out.StreakWeeks = summary.StreakWeeks
		if err := s.notifier.ScoreUpdated(ctx, ScoreUpdatedEvent{
			UserID: p.UserID, PeriodKey: per.Key,
			PointsTotal: summary.PointsTotal, StreakWeeks: summary.StreakWeeks,
		}); err != nil {
			zapLog.Warn("failed to publish score update", zap.Error(err))
		}
	}

	zapLog.Info("verification pass finished", zap.Int("tasks", len(out.Results)), zap.Int("total_points", out.TotalPoints))
	return out, nil
}

func (s *Service) verifyTask(ctx context.Context, per period.Period, t *usertask.UserTask, evidence []*usertask.Evidence, signals []v.Signal, window v.Window) TaskResult {
	zapLog := zap.L().With(zap.String("user_task_id", t.ID), zap.String("task_code", t.TaskCode))

	res := TaskResult{
		TaskID:         t.ID,
		TaskCode:       t.TaskCode,
		PreviousStatus: t.Status,
		NewStatus:      t.Status,
		PreviousPoints: t.ScoreAwarded,
		NewPoints:      t.ScoreAwarded,
	}

	if t.Definition == nil {
		res.Notes = []string{"task definition missing"}
		return res
	}

	in := v.Input{
		Definition: t.Definition.EngineDefinition(),
		Evidence:   make([]v.Evidence, 0, len(evidence)),
		Signals:    signals,
		Window:     window,
	}
	for _, e := range evidence {
		in.Evidence = append(in.Evidence, e.ToVerification())
	}

	outcome := s.engine.Verify(in)
	merged := usertask.Merge(t.Status, t.ScoreAwarded, outcome)

	res.Notes = append([]string{}, outcome.Notes...)
	if merged.Kept {
		if t.Status != v.StatusRejected {
			res.Notes = append(res.Notes, fmt.Sprintf("kept %s, engine reported %s", t.Status, outcome.Status))
		} else {
			res.Notes = append(res.Notes, "rejected by reviewer")
		}
		if t.Status == v.StatusVerified {
			s.ensureAwarded(ctx, per, t, t.ScoreAwarded, &res)
		}
		return res
	}

	newlyVerified := t.Status != v.StatusVerified && merged.Status == v.StatusVerified
	record := usertask.Verification{Status: merged.Status, Points: merged.Points, Notes: res.Notes}
	now := time.Now()
	if newlyVerified {
		record.VerifiedAt = &now
	}

	// status and award commit together; a failed insert leaves the task
	// unverified for the next pass
	var award *ledger.AwardResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tasks.RecordVerificationTx(ctx, tx, t, record); err != nil {
			return err
		}
		if !newlyVerified {
			return nil
		}
		var err error
		award, err = s.ledger.AwardTx(ctx, tx, s.awardParams(per, t, merged.Points))
		return err
	})
	if err != nil {
		zapLog.Error("failed to persist verification", zap.Error(err))
		res.Notes = append(res.Notes, "failed to persist verification: "+err.Error())
		return res
	}
	res.NewStatus = merged.Status
	res.NewPoints = merged.Points

	if !newlyVerified {
		if t.Status == v.StatusVerified {
			s.ensureAwarded(ctx, per, t, merged.Points, &res)
		}
		return res
	}
	res.Awarded = award.Awarded

	if err := s.notifier.TaskVerified(ctx, TaskVerifiedEvent{
		UserID:     t.UserID,
		PeriodKey:  per.Key,
		UserTaskID: t.ID,
		TaskCode:   t.TaskCode,
		Points:     merged.Points,
		Awarded:    res.Awarded,
		VerifiedAt: now,
	}); err != nil {
		zapLog.Warn("failed to publish task verified", zap.Error(err))
	}
	return res
}

func (s *Service) awardParams(per period.Period, t *usertask.UserTask, points int) ledger.AwardParams {
	return ledger.AwardParams{
		UserID:       t.UserID,
		ActivityID:   ledger.ActivityID(t.TaskCode, per.Key),
		ActivityDate: s.calc.Today(),
		Points:       int64(points),
		UserTaskID:   t.ID,
		PeriodKey:    per.Key,
		Description:  "verified " + t.TaskCode,
		Metadata:     map[string]any{"status": v.StatusVerified},
	}
}

// ensureAwarded credits a VERIFIED task that has no ledger entry for its
// activity on any day.
func (s *Service) ensureAwarded(ctx context.Context, per period.Period, t *usertask.UserTask, points int, res *TaskResult) {
	zapLog := zap.L().With(zap.String("user_task_id", t.ID), zap.String("task_code", t.TaskCode))

	found, err := s.ledger.HasEntry(ctx, t.UserID, ledger.ActivityID(t.TaskCode, per.Key), "")
	if err != nil {
		zapLog.Error("failed to check ledger entry", zap.Error(err))
		res.Notes = append(res.Notes, "failed to check ledger entry: "+err.Error())
		return
	}
	if found {
		return
	}

	award, err := s.ledger.Award(ctx, s.awardParams(per, t, points))
	if err != nil {
		zapLog.Error("failed to award points", zap.Error(err))
		res.Notes = append(res.Notes, "failed to award points: "+err.Error())
		return
	}
	res.Awarded = award.Awarded
	if award.Awarded {
		zapLog.Warn("credited verified task missing from the ledger")
		res.Notes = append(res.Notes, "credited missing ledger entry")
	}
}

func passTotal(results []TaskResult) int {
	total := 0
	for _, r := range results {
		total += r.NewPoints
	}
	return total
}
