package celengine

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Fact variables exposed to catalog bonus expressions.
const (
	FactSignalCount    = "signal_count"
	FactUniqueActors   = "unique_actors"
	FactDaysActive     = "days_active"
	FactEvidenceCount  = "evidence_count"
	FactEvidenceKinds  = "evidence_kinds"
	FactKindCounts     = "kinds"
	FactDomainVerified = "domain_verified"
	FactExportItems    = "export_items"
	FactBasePoints     = "base_points"
)

// NewFactsEnv declares every verification fact with a fixed type so expressions
// are type-checked once at catalog write time.
func NewFactsEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(FactSignalCount, cel.IntType),
		cel.Variable(FactUniqueActors, cel.IntType),
		cel.Variable(FactDaysActive, cel.IntType),
		cel.Variable(FactEvidenceCount, cel.IntType),
		cel.Variable(FactEvidenceKinds, cel.ListType(cel.StringType)),
		cel.Variable(FactKindCounts, cel.MapType(cel.StringType, cel.IntType)),
		cel.Variable(FactDomainVerified, cel.BoolType),
		cel.Variable(FactExportItems, cel.IntType),
		cel.Variable(FactBasePoints, cel.IntType),
	)
}

func check(env *cel.Env, expr string) (*cel.Ast, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return bool, got %s", out)
	}
	return ast, nil
}

func ValidateExpression(env *cel.Env, expr string) error {
	_, err := check(env, expr)
	return err
}

// Compile type-checks expr and builds a reusable program.
func Compile(env *cel.Env, expr string) (cel.Program, error) {
	ast, err := check(env, expr)
	if err != nil {
		return nil, err
	}
	return env.Program(ast)
}

func EvaluateProgram(prg cel.Program, attrs map[string]any) (bool, error) {
	out, _, err := prg.Eval(attrs)
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}

	return b, nil
}

func Evaluate(env *cel.Env, expr string, attrs map[string]any) (bool, error) {
	prg, err := Compile(env, expr)
	if err != nil {
		return false, err
	}
	return EvaluateProgram(prg, attrs)
}
