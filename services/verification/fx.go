package verification

import "go.uber.org/fx"

var Module = fx.Module("verification",
	fx.Provide(DefaultRegistry),
	fx.Provide(NewBonusEvaluator),
	fx.Provide(NewEngine),
)
