package orchestrator

import "go.uber.org/fx"

var Module = fx.Module("orchestrator.service",
	fx.Provide(NewService, NewNotifier),
)
