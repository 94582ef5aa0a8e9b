// Package app holds the fx options every engine binary starts from.
package app

import (
	"os"

	"careerloop-engine/internal/schema"
	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/db"
	"careerloop-engine/pkg/gen"
	"careerloop-engine/pkg/hashistack/secretmanager"
	"careerloop-engine/pkg/logger"
	"careerloop-engine/pkg/otelcol"
	"careerloop-engine/pkg/period"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Config loads config.yaml, or the remote provider when REMOTE_CONFIG_PROVIDER
// is set. Vault secrets are applied when VAULT_ADDR is set.
func Config() fx.Option {
	_, vaultEnabled := os.LookupEnv("VAULT_ADDR")
	_, remote := os.LookupEnv("REMOTE_CONFIG_PROVIDER")

	switch {
	case remote && vaultEnabled:
		return fx.Options(secretmanager.Module, config.RemoteModule)
	case vaultEnabled:
		return fx.Options(secretmanager.Module, config.Module)
	default:
		return config.Module
	}
}

// Base is config, logging, telemetry, the database with its schema, ids and
// the period calculator.
func Base() []fx.Option {
	return []fx.Option{
		Config(),
		logger.Module,
		otelcol.Module,
		db.Module,
		schema.Module,
		gen.Module,
		period.Module,
		FxLogger,
	}
}

var FxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "debug" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})
