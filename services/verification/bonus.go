package verification

import (
	"fmt"
	"time"

	"careerloop-engine/pkg/celengine"

	"github.com/google/cel-go/cel"
)

// BonusEvaluator runs catalog bonus expressions against rule facts.
type BonusEvaluator struct {
	env   *cel.Env
	cache *ProgramCache
}

func NewBonusEvaluator() (*BonusEvaluator, error) {
	env, err := celengine.NewFactsEnv()
	if err != nil {
		return nil, fmt.Errorf("build facts env: %w", err)
	}
	return &BonusEvaluator{env: env, cache: NewProgramCache(30 * time.Minute)}, nil
}

func (b *BonusEvaluator) compile(expr string) (cel.Program, error) {
	return celengine.Compile(b.env, expr)
}

// Validate reports whether expr compiles to a boolean over the facts.
func (b *BonusEvaluator) Validate(expr string) error {
	return celengine.ValidateExpression(b.env, expr)
}

func (b *BonusEvaluator) Matches(expr string, facts map[string]any) (bool, error) {
	prg, err := b.cache.Load(expr, b.compile)
	if err != nil {
		return false, err
	}
	return celengine.EvaluateProgram(prg, facts)
}
