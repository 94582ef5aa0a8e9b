package httpapi

import (
	"net/http"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/health"
	"careerloop-engine/pkg/middleware"
	"careerloop-engine/services/signal"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewHandler),
	fx.Provide(NewRouter),
)

type RouterParams struct {
	fx.In

	Config   *config.Config
	Handler  *Handler
	Health   health.HealthService
	Enforcer *casbin.Enforcer
	Auth     *signal.Authenticator
}

// NewRouter mounts the public, ingestion and admin routes.
func NewRouter(p RouterParams) http.Handler {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/health/liveness", p.Health.Liveness)
	r.GET("/health/readiness", p.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := p.Handler
	v1 := r.Group("/v1")
	{
		v1.POST("/profiles", h.CreateProfile)
		v1.GET("/profiles/:id", h.GetProfile)
		v1.PUT("/profiles/:id/domain", h.SetDomain)
		v1.POST("/profiles/:id/domain/verify", h.VerifyDomain)

		users := v1.Group("/users/:user_id")
		users.POST("/instantiate", h.Instantiate)
		users.POST("/verify", h.Verify)
		users.GET("/tasks", h.ListTasks)
		users.GET("/score", h.Score)
		users.GET("/balance", h.Balance)
		users.GET("/ledger", h.Ledger)
		users.GET("/ledger/verify", h.VerifyLedger)

		v1.GET("/user-tasks/:id", h.GetUserTask)
		v1.POST("/user-tasks/:id/evidence", h.SubmitEvidence)

		v1.POST("/signals", middleware.APIKey(p.Auth, signal.SourceFromAPIKey), h.IngestSignals)
	}

	admin := v1.Group("/admin", middleware.Authorize(p.Enforcer))
	{
		admin.GET("/task-definitions", h.ListDefinitions)
		admin.POST("/task-definitions", h.CreateDefinition)
		admin.PUT("/task-definitions/:id", h.UpdateDefinition)

		admin.POST("/evidence/:id/review", h.ReviewEvidence)
		admin.POST("/user-tasks/:id/reject", h.RejectTask)

		admin.POST("/batches/instantiate", h.InstantiateBatch)
		admin.POST("/batches/verify", h.VerifyBatch)
		admin.GET("/batches/:id", h.GetBatch)
	}

	return r
}
