package main

import (
	"log"

	"careerloop-engine/internal/app"
	"careerloop-engine/pkg/dns"
	"careerloop-engine/pkg/minio"
	"careerloop-engine/pkg/profiling"
	"careerloop-engine/pkg/redis"
	"careerloop-engine/pkg/sequence"
	enginetask "careerloop-engine/pkg/task"
	"careerloop-engine/pkg/workflow"
	"careerloop-engine/services/catalog"
	"careerloop-engine/services/ledger"
	"careerloop-engine/services/orchestrator"
	"careerloop-engine/services/profile"
	"careerloop-engine/services/scoring"
	"careerloop-engine/services/signal"
	"careerloop-engine/services/task"
	"careerloop-engine/services/usertask"
	"careerloop-engine/services/verification"

	"go.uber.org/fx"
)

// The worker drains the asynq queues, consumes the Kafka signal topic and,
// with SCHEDULER.BACKEND=temporal, runs the weekly cycle workflow.
func main() {
	opts := append(app.Base(),
		profiling.Module,
		redis.Module,
		sequence.Module,
		dns.Module,
		minio.Client,
		enginetask.Client,
		enginetask.Server,

		verification.Module,
		catalog.Module,
		profile.Module,
		usertask.Module,
		signal.Module,
		signal.ConsumerModule,
		scoring.Module,
		ledger.Module,
		orchestrator.Module,
		task.Module,
		task.WorkerModule,

		workflow.ProvideClient,
		workflow.WorkerModule,
	)

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}
