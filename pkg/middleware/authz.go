package middleware

import (
	"errors"
	"strings"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const HeaderRole = "X-Engine-Role"

var ErrForbidden = errors.New("forbidden")

var AuthzModule = fx.Module("authz", fx.Provide(NewEnforcer))

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

const defaultPolicy = `
p, reviewer, /v1/admin/evidence/:id/review, POST
p, reviewer, /v1/admin/user-tasks/:id/reject, POST
p, operator, /v1/admin/task-definitions, (GET)|(POST)
p, operator, /v1/admin/task-definitions/:id, PUT
p, operator, /v1/admin/batches/*, (GET)|(POST)
g, admin, reviewer
g, admin, operator
`

// NewEnforcer loads the casbin model and policy files named by
// ACCESS_CONTROL, falling back to the built-in admin roles.
func NewEnforcer(cfg *config.Config) (*casbin.Enforcer, error) {
	if cfg.AccessControl.Model != "" && cfg.AccessControl.Policy != "" {
		zap.L().Info("[Authz] loading casbin policy", zap.String("policy", cfg.AccessControl.Policy))
		return casbin.NewEnforcer(cfg.AccessControl.Model, cfg.AccessControl.Policy)
	}
	return DefaultEnforcer()
}

func DefaultEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, err
	}
	return casbin.NewEnforcer(m, stringadapter.NewAdapter(strings.TrimSpace(defaultPolicy)))
}

// Authorize checks the caller's role header against the enforcer.
func Authorize(e *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.TrimSpace(c.GetHeader(HeaderRole))
		if role == "" {
			_ = c.Error(errutil.Forbidden("role required", ErrForbidden))
			c.Abort()
			return
		}

		ok, err := e.Enforce(role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			_ = c.Error(errutil.Internal("authorization failed", err))
			c.Abort()
			return
		}
		if !ok {
			_ = c.Error(errutil.Forbidden("role "+role+" may not "+c.Request.Method+" "+c.Request.URL.Path, ErrForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Actor is the reviewer name recorded on admin actions.
func Actor(c *gin.Context) string {
	if a := strings.TrimSpace(c.GetHeader("X-Engine-Actor")); a != "" {
		return a
	}
	return c.GetHeader(HeaderRole)
}
