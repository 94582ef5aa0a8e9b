package main

import (
	"context"
	"log"

	"careerloop-engine/internal/app"
	"careerloop-engine/services/catalog"
	"careerloop-engine/services/verification"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	opts := append(app.Base(),
		verification.Module,
		catalog.Module,
		fx.Invoke(seed),
	)

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

// seed upserts the built-in definitions keyed by code and stops the app.
func seed(lc fx.Lifecycle, shutdowner fx.Shutdowner, svc *catalog.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				var failed int
				for _, in := range catalog.Defaults() {
					def, err := svc.Upsert(context.Background(), in)
					if err != nil {
						failed++
						zap.L().Error("failed to seed task definition", zap.String("code", in.Code), zap.Error(err))
						continue
					}
					zap.L().Info("task definition seeded", zap.String("code", def.Code), zap.Int("base_points", def.BasePoints))
				}

				code := 0
				if failed > 0 {
					code = 1
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
	})
}
