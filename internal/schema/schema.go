package schema

import (
	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/db"
	"careerloop-engine/services/catalog"
	"careerloop-engine/services/ledger"
	"careerloop-engine/services/profile"
	"careerloop-engine/services/scoring"
	"careerloop-engine/services/signal"
	"careerloop-engine/services/task"
	"careerloop-engine/services/usertask"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module migrates every engine table at startup.
var Module = fx.Module("schema", fx.Invoke(Migrate))

// Models lists every persisted engine model.
func Models() []any {
	models := []any{
		&profile.Profile{},
		&catalog.TaskDefinition{},
		&signal.Signal{},
		&scoring.ScoreSummary{},
		&task.Job{},
	}
	models = append(models, usertask.Models()...)
	return append(models, ledger.Models()...)
}

func Migrate(cfg *config.Config, gdb *gorm.DB) error {
	return db.Migrate(cfg, gdb, Models()...)
}
