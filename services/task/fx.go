package task

import (
	"go.uber.org/fx"
)

var Module = fx.Module("task.service",
	fx.Provide(
		NewService,
	),
)

// SchedulerModule runs the scheduled instantiate and verify batches.
var SchedulerModule = fx.Module("task.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)

// WorkerModule binds the per-user and batch handlers to the asynq mux.
var WorkerModule = fx.Module("task.worker",
	fx.Invoke(RegisterHandlers),
)
