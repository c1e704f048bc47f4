// Package policy decides which decided flight statuses are compensable. The
// predicate is a CEL expression over the status code, so operators can widen
// the compensable set without code changes.
package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/surety/pkg/flight"
)

// DefaultExpression compensates only delays attributed to the airline.
const DefaultExpression = `status == "LATE_AIRLINE"`

// PayoutPolicy is a compiled compensability predicate.
type PayoutPolicy struct {
	expr string
	prg  cel.Program
}

// New compiles expr. Compile errors surface here, not at evaluation time.
func New(expr string) (*PayoutPolicy, error) {
	if expr == "" {
		expr = DefaultExpression
	}
	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile payout policy %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("payout policy %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build payout program: %w", err)
	}
	return &PayoutPolicy{expr: expr, prg: prg}, nil
}

// Compensable reports whether a decision with this status triggers payout.
func (p *PayoutPolicy) Compensable(status flight.Status) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"status": string(status),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate payout policy: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("payout policy returned %T, want bool", out.Value())
	}
	return b, nil
}

// Expression returns the source expression.
func (p *PayoutPolicy) Expression() string {
	return p.expr
}
