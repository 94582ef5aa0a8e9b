package main

import (
	"log"

	"careerloop-engine/internal/app"
	"careerloop-engine/internal/httpapi"
	"careerloop-engine/pkg/dns"
	"careerloop-engine/pkg/featureflags"
	"careerloop-engine/pkg/hashistack/servicediscover"
	"careerloop-engine/pkg/health"
	"careerloop-engine/pkg/middleware"
	"careerloop-engine/pkg/minio"
	"careerloop-engine/pkg/profiling"
	"careerloop-engine/pkg/redis"
	"careerloop-engine/pkg/sequence"
	"careerloop-engine/pkg/server"
	enginetask "careerloop-engine/pkg/task"
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

func main() {
	opts := append(app.Base(),
		profiling.Module,
		redis.Module,
		sequence.Module,
		dns.Module,
		minio.Client,
		featureflags.Module,
		enginetask.Client,

		verification.Module,
		catalog.Module,
		profile.Module,
		usertask.Module,
		signal.Module,
		scoring.Module,
		ledger.Module,
		orchestrator.Module,
		task.Module,
		task.SchedulerModule,

		health.Module,
		middleware.AuthzModule,
		httpapi.Module,
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		servicediscover.Module,
	)

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}
