package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/workflow/activities"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var ProvideClient = fx.Module("temporal",
	fx.Provide(NewClient),
	fx.Invoke(Close),
)

// WorkerModule runs the weekly cycle worker and keeps its schedule in place.
var WorkerModule = fx.Module("temporal.worker",
	fx.Provide(activities.New),
	fx.Invoke(RegisterWorker),
)

const (
	WorkflowWeeklyCycle = "WeeklyCycle"
	ScheduleWeeklyCycle = "careerloop-weekly-cycle"
)

const defaultTaskQueue = "WEEKLY_CYCLE_TASK_QUEUE"

func taskQueue(cfg *config.Config) string {
	if cfg.Temporal.TaskQueue != "" {
		return cfg.Temporal.TaskQueue
	}
	return defaultTaskQueue
}

// NewClient dials Temporal only when SCHEDULER.BACKEND is temporal.
func NewClient(cfg *config.Config) client.Client {
	if cfg.Scheduler.Backend != "temporal" {
		return nil
	}

	var c client.Client
	var err error

	clientOptions := client.Options{
		HostPort:  cfg.Temporal.Addr,
		Namespace: cfg.Temporal.Namespace,
		ConnectionOptions: client.ConnectionOptions{
			KeepAliveTime:    30 * time.Second,
			KeepAliveTimeout: 30 * time.Second,
			DialOptions: []grpc.DialOption{
				grpc.WithTransportCredentials(
					insecure.NewCredentials(),
				),
			},
		},
		Logger: log.NewStructuredLogger(
			slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				AddSource: true,
				Level:     slog.LevelInfo,
			}))),
	}

	for i := 1; i <= 3; i++ {
		c, err = client.Dial(clientOptions)
		if err == nil {
			break
		}
		zap.L().Warn("retrying Temporal client connection", zap.Int("attempt", i), zap.Error(err))
		time.Sleep(2 * time.Second)
	}

	if err != nil {
		zap.L().Fatal("failed to connect Temporal server after retries", zap.Error(err))
	}

	zap.L().Info("Connected to Temporal server")
	return c
}

func Close(lc fx.Lifecycle, c client.Client) {
	if c == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			c.Close()
			return nil
		},
	})
}

// Register binds the workflow and its activities to w.
func Register(w worker.Registry, acts *activities.Activities) {
	w.RegisterWorkflowWithOptions(WeeklyCycle, workflow.RegisterOptions{Name: WorkflowWeeklyCycle})
	w.RegisterActivity(acts)
}

// RegisterWorker starts the worker when SCHEDULER.BACKEND is temporal.
func RegisterWorker(lc fx.Lifecycle, cfg *config.Config, c client.Client, acts *activities.Activities) {
	if c == nil {
		return
	}

	w := worker.New(c, taskQueue(cfg), worker.Options{})
	Register(w, acts)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Scheduler.Enabled {
				if err := EnsureSchedule(ctx, c, cfg); err != nil {
					return err
				}
			}
			zap.L().Info("[Temporal] worker started", zap.String("task_queue", taskQueue(cfg)))
			return w.Start()
		},
		OnStop: func(ctx context.Context) error {
			w.Stop()
			return nil
		},
	})
}

// CronSpec is the weekly cycle start: Mondays at the instantiate time.
func CronSpec(cfg *config.Config) string {
	return fmt.Sprintf("%d %d * * 1", cfg.Scheduler.InstantiateMinute, cfg.Scheduler.InstantiateHour)
}

// EnsureSchedule creates the weekly cycle schedule. An existing schedule is
// left untouched.
func EnsureSchedule(ctx context.Context, c client.Client, cfg *config.Config) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: ScheduleWeeklyCycle,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{CronSpec(cfg)},
			TimeZoneName:    cfg.Engine.Timezone,
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        ScheduleWeeklyCycle,
			Workflow:  WorkflowWeeklyCycle,
			TaskQueue: taskQueue(cfg),
			Args:      []interface{}{WeeklyCycleInput{}},
		},
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		return nil
	}
	if err != nil {
		zap.L().Error("[Temporal] failed to create schedule", zap.Error(err))
		return err
	}
	zap.L().Info("[Temporal] weekly cycle schedule created", zap.String("cron", CronSpec(cfg)))
	return nil
}
