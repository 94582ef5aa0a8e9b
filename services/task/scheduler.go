package task

import (
	"context"
	"encoding/json"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/featureflags"
	"careerloop-engine/pkg/period"
	enginetask "careerloop-engine/pkg/task"
	"careerloop-engine/pkg/taskname"
	"careerloop-engine/services/usertask"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Scheduler struct {
	service  *Service
	enqueuer enginetask.Enqueuer
	flags    featureflags.FeatureFlag
	loc      *time.Location

	instantiateHour, instantiateMinute int
	verifyHour, verifyMinute           int
}

type SchedulerParams struct {
	fx.In

	Config   *config.Config
	Service  *Service
	Calc     *period.Calculator
	Enqueuer enginetask.Enqueuer      `optional:"true"`
	Flags    featureflags.FeatureFlag `optional:"true"`
}

func NewScheduler(p SchedulerParams) *Scheduler {
	return &Scheduler{
		service:           p.Service,
		enqueuer:          p.Enqueuer,
		flags:             p.Flags,
		loc:               p.Calc.Location(),
		instantiateHour:   p.Config.Scheduler.InstantiateHour,
		instantiateMinute: p.Config.Scheduler.InstantiateMinute,
		verifyHour:        p.Config.Scheduler.VerifyHour,
		verifyMinute:      p.Config.Scheduler.VerifyMinute,
	}
}

// StartScheduler runs the loop when SCHEDULER.ENABLED is set and asynq is the
// scheduling backend.
func StartScheduler(lc fx.Lifecycle, cfg *config.Config, s *Scheduler) {
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Backend == "temporal" {
		zap.L().Info("[Scheduler] disabled", zap.String("backend", cfg.Scheduler.Backend))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

type job struct {
	kind Kind
	at   time.Time
}

// next picks whichever of the weekly instantiate and daily verify runs comes
// first after now.
func (s *Scheduler) next(now time.Time) job {
	inst := nextWeeklyRun(now, time.Monday, s.instantiateHour, s.instantiateMinute)
	verify := nextRunTime(now, s.verifyHour, s.verifyMinute)
	if inst.Before(verify) {
		return job{kind: KindInstantiate, at: inst}
	}
	return job{kind: KindVerify, at: verify}
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started weekly cycle scheduler")

	for {
		now := time.Now().In(s.loc)
		next := s.next(now)

		sleepDuration := next.at.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.String("kind", string(next.kind)),
			zap.Time("next_run", next.at),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-time.After(sleepDuration):
			s.trigger(ctx, next.kind)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) enabled(ctx context.Context, kind Kind) bool {
	if s.flags == nil {
		return true
	}
	name := featureflags.ScheduledVerify
	if kind == KindInstantiate {
		name = featureflags.ScheduledInstantiate
	}
	return s.flags.Enabled(ctx, name, true)
}

// trigger starts one scheduled batch. The weekly instantiate uses ensure so a
// rerun never wipes progress.
func (s *Scheduler) trigger(ctx context.Context, kind Kind) {
	if !s.enabled(ctx, kind) {
		zap.L().Info("[Scheduler] run skipped by feature flag", zap.String("kind", string(kind)))
		return
	}

	start := time.Now()
	p := BatchParams{Kind: kind}
	if kind == KindInstantiate {
		p.Mode = usertask.ModeEnsure
	}

	if s.enqueuer != nil {
		typename := taskname.VerifyAll
		if kind == KindInstantiate {
			typename = taskname.InstantiateAll
		}
		payload, _ := json.Marshal(BatchPayload{Mode: string(p.Mode)})
		if _, err := s.enqueuer.Enqueue(asynq.NewTask(typename, payload), asynq.Queue(taskname.QueueCritical), asynq.MaxRetry(1)); err != nil {
			zap.L().Error("[Scheduler] failed to enqueue batch", zap.String("kind", string(kind)), zap.Error(err))
		}
		return
	}

	job, err := s.service.RunBatch(ctx, p)
	if err != nil {
		zap.L().Error("[Scheduler] batch failed", zap.String("kind", string(kind)), zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] batch finished",
		zap.String("run_code", job.RunCode),
		zap.Duration("duration", time.Since(start)),
	)
}

// nextRunTime returns the next occurrence of hour:minute after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeeklyRun returns the next weekday at hour:minute after now.
func nextWeeklyRun(now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	days := (int(weekday) - int(now.Weekday()) + period.Days) % period.Days
	next := time.Date(now.Year(), now.Month(), now.Day()+days, hour, minute, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.AddDate(0, 0, period.Days)
	}
	return next
}
