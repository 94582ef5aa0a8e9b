package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/db/pagination"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/period"
	"careerloop-engine/pkg/repository"
	"careerloop-engine/pkg/sequence"
	enginetask "careerloop-engine/pkg/task"
	"careerloop-engine/pkg/taskname"
	"careerloop-engine/services/orchestrator"
	"careerloop-engine/services/profile"
	"careerloop-engine/services/usertask"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("batch job not found")

const (
	defaultPageSize    = 250
	defaultParallelism = 4
)

type Service struct {
	db           *gorm.DB
	node         *snowflake.Node
	calc         *period.Calculator
	profile      *profile.Service
	tasks        *usertask.Service
	orchestrator *orchestrator.Service
	enqueuer     enginetask.Enqueuer
	seq          sequence.Generator

	pageSize    int
	parallelism int
	run         func(ctx context.Context, kind Kind, userID, periodKey string, mode usertask.Mode) error

	jobs repository.Repository[Job]
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Node         *snowflake.Node
	Config       *config.Config `optional:"true"`
	Calc         *period.Calculator
	Profile      *profile.Service
	Tasks        *usertask.Service
	Orchestrator *orchestrator.Service
	Enqueuer     enginetask.Enqueuer `optional:"true"`
	Sequence     sequence.Generator  `optional:"true"`
}

func NewService(p Params) *Service {
	pageSize := defaultPageSize
	if p.Config != nil && p.Config.Scheduler.PageSize > 0 {
		pageSize = min(p.Config.Scheduler.PageSize, defaultPageSize)
	}
	seq := p.Sequence
	if seq == nil {
		seq = sequence.NewLocalGenerator()
	}

	s := &Service{
		db:           p.DB,
		node:         p.Node,
		calc:         p.Calc,
		profile:      p.Profile,
		tasks:        p.Tasks,
		orchestrator: p.Orchestrator,
		enqueuer:     p.Enqueuer,
		seq:          seq,
		pageSize:     pageSize,
		parallelism:  defaultParallelism,
		jobs:         repository.ProvideStore[Job](p.DB),
	}
	s.run = s.runUser
	return s
}

type BatchParams struct {
	Kind      Kind          `json:"-"`
	PeriodKey string        `json:"period"`
	Mode      usertask.Mode `json:"mode"`
}

func (s *Service) newJob(ctx context.Context, p BatchParams) (*Job, error) {
	if !p.Kind.Valid() {
		return nil, errutil.BadRequest("unknown batch kind", nil)
	}
	per, err := s.calc.Resolve(p.PeriodKey)
	if err != nil {
		return nil, errutil.BadRequest("invalid period", usertask.ErrInvalidPeriod)
	}

	job := &Job{
		ID:        s.node.Generate().String(),
		Kind:      p.Kind,
		PeriodKey: per.Key,
		Status:    JobRunning,
	}
	if p.Kind == KindInstantiate {
		mode := p.Mode
		if mode == "" {
			mode = s.tasks.DefaultMode()
		}
		if !mode.Valid() {
			return nil, errutil.BadRequest("mode must be reset or ensure", nil)
		}
		job.Mode = string(mode)
	}

	prefix := sequence.PrefixVerifyRun
	if p.Kind == KindInstantiate {
		prefix = sequence.PrefixInstantiateRun
	}
	code, err := s.seq.NextRunCode(ctx, prefix)
	if err != nil {
		zap.L().Warn("failed to get run code, using job id", zap.Error(err))
		code = fmt.Sprintf("%s-%s", prefix, job.ID)
	}
	job.RunCode = code

	now := time.Now()
	job.StartedAt = &now
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// forEachPage walks every profile id, one page at a time.
func (s *Service) forEachPage(ctx context.Context, fn func(ids []string)) error {
	cursor := ""
	for {
		rows, info, err := s.profile.Page(ctx, pagination.Pagination{Cursor: cursor, Limit: s.pageSize})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		fn(ids)

		if info == nil || !info.HasMore {
			return nil
		}
		cursor = info.NextCursor
	}
}

// runUser runs one user's part of a batch.
func (s *Service) runUser(ctx context.Context, kind Kind, userID, periodKey string, mode usertask.Mode) error {
	switch kind {
	case KindInstantiate:
		_, err := s.tasks.Instantiate(ctx, usertask.InstantiateParams{UserID: userID, PeriodKey: periodKey, Mode: mode})
		return err
	case KindVerify:
		_, err := s.orchestrator.Verify(ctx, orchestrator.VerifyParams{UserID: userID, PeriodKey: periodKey})
		return err
	default:
		return fmt.Errorf("unknown batch kind %q", kind)
	}
}

// RunBatch processes every profile in-process. A user's failure is logged and
// counted on the job, and the batch moves on.
func (s *Service) RunBatch(ctx context.Context, p BatchParams) (*Job, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(zap.String("trace_id", span.SpanContext().TraceID().String()))

	job, err := s.newJob(ctx, p)
	if err != nil {
		return nil, err
	}
	zapLog = zapLog.With(zap.String("run_code", job.RunCode), zap.String("period", job.PeriodKey))

	var total, succeeded, failed atomic.Int64
	walkErr := s.forEachPage(ctx, func(ids []string) {
		g := errgroup.Group{}
		g.SetLimit(s.parallelism)
		for _, id := range ids {
			total.Add(1)
			g.Go(func() error {
				if err := s.run(ctx, job.Kind, id, job.PeriodKey, usertask.Mode(job.Mode)); err != nil {
					zapLog.Error("batch user failed", zap.String("user_id", id), zap.Error(err))
					failed.Add(1)
					return nil
				}
				succeeded.Add(1)
				return nil
			})
		}
		_ = g.Wait()
	})

	job.Total = int(total.Load())
	job.Succeeded = int(succeeded.Load())
	job.Failed = int(failed.Load())
	if walkErr != nil {
		zapLog.Error("failed to page profiles", zap.Error(walkErr))
		job.ErrorMsg = walkErr.Error()
	}
	if err := s.finish(ctx, job); err != nil {
		return nil, err
	}

	zapLog.Info("batch finished",
		zap.Int("total", job.Total),
		zap.Int("succeeded", job.Succeeded),
		zap.Int("failed", job.Failed),
	)
	return job, nil
}

// EnqueueBatch creates the job and hands one asynq task per user to the
// worker. Without an asynq client the batch runs in-process.
func (s *Service) EnqueueBatch(ctx context.Context, p BatchParams) (*Job, error) {
	if s.enqueuer == nil {
		return s.RunBatch(ctx, p)
	}

	job, err := s.newJob(ctx, p)
	if err != nil {
		return nil, err
	}
	zapLog := zap.L().With(zap.String("run_code", job.RunCode), zap.String("period", job.PeriodKey))

	typename := taskname.VerifyUser
	if job.Kind == KindInstantiate {
		typename = taskname.InstantiateUser
	}

	// Total is stored before the first enqueue so a fast worker cannot close
	// the job early.
	var ids []string
	if err := s.forEachPage(ctx, func(page []string) { ids = append(ids, page...) }); err != nil {
		zapLog.Error("failed to page profiles", zap.Error(err))
		job.ErrorMsg = err.Error()
		if err := s.finish(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}
	job.Total = len(ids)
	if job.Total == 0 {
		if err := s.finish(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}
	updates := map[string]any{"total": job.Total}
	if err := s.jobs.Update(ctx, job.ID, &updates); err != nil {
		return nil, err
	}

	for _, id := range ids {
		payload, _ := json.Marshal(UserPayload{JobID: job.ID, UserID: id, PeriodKey: job.PeriodKey, Mode: job.Mode})
		if _, err := s.enqueuer.Enqueue(asynq.NewTask(typename, payload), asynq.Queue(taskname.QueueDefault), asynq.MaxRetry(3)); err != nil {
			zapLog.Error("failed to enqueue user task", zap.String("user_id", id), zap.Error(err))
			job.Failed++
			if err := s.recordOutcome(ctx, job.ID, true); err != nil {
				zapLog.Warn("failed to record enqueue failure", zap.Error(err))
			}
		}
	}

	zapLog.Info("batch enqueued", zap.Int("total", job.Total), zap.Int("failed", job.Failed))
	return s.GetJob(ctx, job.ID)
}

func (s *Service) finish(ctx context.Context, job *Job) error {
	now := time.Now()
	job.CompletedAt = &now
	job.Status = JobSuccess
	if job.Failed > 0 || job.ErrorMsg != "" {
		job.Status = JobFailed
		if job.ErrorMsg == "" {
			job.ErrorMsg = fmt.Sprintf("%d of %d users failed", job.Failed, job.Total)
		}
	}

	updates := map[string]any{
		"status":       job.Status,
		"total":        job.Total,
		"succeeded":    job.Succeeded,
		"failed":       job.Failed,
		"error_msg":    job.ErrorMsg,
		"completed_at": now,
	}
	return s.jobs.Update(ctx, job.ID, &updates)
}

// recordOutcome counts one processed user on the job and closes the job once
// every user is accounted for.
func (s *Service) recordOutcome(ctx context.Context, jobID string, failed bool) error {
	column := "succeeded"
	if failed {
		column = "failed"
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Job{}).Where("id = ?", jobID).
			Update(column, gorm.Expr(column+" + 1")).Error; err != nil {
			return err
		}

		var job Job
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return err
		}
		if job.Status != JobRunning || !job.Done() {
			return nil
		}

		status := JobSuccess
		msg := ""
		if job.Failed > 0 {
			status = JobFailed
			msg = fmt.Sprintf("%d of %d users failed", job.Failed, job.Total)
		}
		return tx.Model(&Job{}).Where("id = ?", jobID).Updates(map[string]any{
			"status":       status,
			"error_msg":    msg,
			"completed_at": time.Now(),
		}).Error
	})
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	if id == "" {
		return nil, errutil.NotFound("batch job not found", ErrJobNotFound)
	}
	job, err := s.jobs.FindOne(ctx, &Job{ID: id})
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errutil.NotFound("batch job not found", ErrJobNotFound)
	}
	return job, nil
}

// finalAttempt reports whether asynq will not retry the running task again.
// Outside a worker there are no retries.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

func (s *Service) handleUser(ctx context.Context, kind Kind, t *asynq.Task) error {
	var payload UserPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid user task payload", zap.String("task_type", t.Type()), zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("user_id", payload.UserID),
		zap.String("period", payload.PeriodKey),
	)

	runErr := s.run(ctx, kind, payload.UserID, payload.PeriodKey, usertask.Mode(payload.Mode))
	if runErr != nil {
		zapLog.Error("user task failed", zap.Error(runErr))
	}

	// Client errors will not get better on retry.
	permanent := false
	if be, ok := errutil.As(runErr); ok && be.Code != errutil.StatusInternal {
		permanent = true
	}

	if payload.JobID != "" && (runErr == nil || permanent || finalAttempt(ctx)) {
		if err := s.recordOutcome(ctx, payload.JobID, runErr != nil); err != nil {
			zapLog.Warn("failed to record batch outcome", zap.String("job_id", payload.JobID), zap.Error(err))
		}
	}

	if permanent {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, runErr)
	}
	return runErr
}

func (s *Service) HandleInstantiateUser(ctx context.Context, t *asynq.Task) error {
	return s.handleUser(ctx, KindInstantiate, t)
}

func (s *Service) HandleVerifyUser(ctx context.Context, t *asynq.Task) error {
	return s.handleUser(ctx, KindVerify, t)
}

func (s *Service) handleBatch(ctx context.Context, kind Kind, t *asynq.Task) error {
	var payload BatchPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			zap.L().Error("invalid batch payload", zap.String("task_type", t.Type()), zap.Error(err))
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
	}

	_, err := s.EnqueueBatch(ctx, BatchParams{Kind: kind, PeriodKey: payload.PeriodKey, Mode: usertask.Mode(payload.Mode)})
	return err
}

func (s *Service) HandleInstantiateAll(ctx context.Context, t *asynq.Task) error {
	return s.handleBatch(ctx, KindInstantiate, t)
}

func (s *Service) HandleVerifyAll(ctx context.Context, t *asynq.Task) error {
	return s.handleBatch(ctx, KindVerify, t)
}

// HandleNotification logs a delivered engine event. Downstream consumers read
// the same events from the notifier's queue.
func (s *Service) HandleNotification(_ context.Context, t *asynq.Task) error {
	var event map[string]any
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	zap.L().Info("engine event delivered", zap.String("task_type", t.Type()), zap.Any("event", event))
	return nil
}

// RegisterHandlers binds the worker's asynq task types.
func RegisterHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.InstantiateUser, s.HandleInstantiateUser)
	mux.HandleFunc(taskname.VerifyUser, s.HandleVerifyUser)
	mux.HandleFunc(taskname.InstantiateAll, s.HandleInstantiateAll)
	mux.HandleFunc(taskname.VerifyAll, s.HandleVerifyAll)
	mux.HandleFunc(taskname.NotifyTaskVerified, s.HandleNotification)
	mux.HandleFunc(taskname.NotifyScoreUpdated, s.HandleNotification)
}
