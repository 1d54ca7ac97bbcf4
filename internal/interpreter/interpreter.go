// Package interpreter is the facade over parsing and execution: one call
// takes free-form task text all the way to an aggregated result.
package interpreter

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/control"
	"github.com/xkilldash9x/deskpilot/internal/engine"
	"github.com/xkilldash9x/deskpilot/internal/parser"
)

// Interpreter binds a parser to an engine. Both are stateless across tasks,
// so one Interpreter serves all callers concurrently.
type Interpreter struct {
	parser *parser.Parser
	engine *engine.Engine
	logger *zap.Logger
}

// New creates an interpreter over the given engine.
func New(p *parser.Parser, e *engine.Engine, logger *zap.Logger) *Interpreter {
	return &Interpreter{parser: p, engine: e, logger: logger.Named("interpreter")}
}

// Mode reports the engine's resolved execution mode.
func (in *Interpreter) Mode() control.Mode { return in.engine.Mode() }

// Plan parses task text without executing anything. Callers use it to
// preview what a task would do.
func (in *Interpreter) Plan(text string) (schemas.ActionPlan, error) {
	return in.parser.Parse(text)
}

// ExecutePlan runs an already-built plan. Direct device operations from the
// transport layer come through here so they share the engine's validation
// and live-mode serialization with parsed tasks.
func (in *Interpreter) ExecutePlan(ctx context.Context, plan schemas.ActionPlan, observe engine.Observer) schemas.ExecutionResult {
	return in.engine.Execute(ctx, plan, observe)
}

// Execute interprets and runs one task. Parse failures never reach a device:
// they come back as a failed result with the diagnostic as the summary and
// no step outcomes. The observer, when non-nil, sees each outcome as it is
// produced.
func (in *Interpreter) Execute(ctx context.Context, text string, observe engine.Observer) schemas.ExecutionResult {
	plan, err := in.parser.Parse(text)
	if err != nil {
		in.logger.Info("task rejected", zap.String("text", text), zap.Error(err))
		return schemas.ExecutionResult{Success: false, Summary: err.Error()}
	}

	in.logger.Info("task accepted",
		zap.String("text", text),
		zap.Int("steps", len(plan)),
		zap.String("mode", string(in.engine.Mode())))
	return in.engine.Execute(ctx, plan, observe)
}
