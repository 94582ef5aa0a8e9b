package usertask

import "go.uber.org/fx"

var Module = fx.Module("usertask.service",
	fx.Provide(NewService),
)
