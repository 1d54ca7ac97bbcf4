// Package engine executes action plans against a set of control surfaces.
// Execution is strictly sequential and halts on the first failure: a failed
// step leaves outcomes only for the steps that actually ran, so the caller
// can always tell what touched the device and what never did.
package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/control"
)

// Observer receives each step outcome as it is produced. Used by the
// streaming transport; nil is fine.
type Observer func(schemas.StepOutcome)

// Engine runs plans against one backend. In live mode a weight-1 semaphore
// serializes executions, because concurrent plans would interleave input
// events on the one real machine. Simulated executions carry no such hazard
// and run concurrently.
type Engine struct {
	surfaces control.Surfaces
	mode     control.Mode
	logger   *zap.Logger
	live     *semaphore.Weighted
}

// New creates an engine bound to the given surfaces and mode.
func New(surfaces control.Surfaces, mode control.Mode, logger *zap.Logger) *Engine {
	e := &Engine{
		surfaces: surfaces,
		mode:     mode,
		logger:   logger.Named("engine"),
	}
	if mode == control.Live {
		e.live = semaphore.NewWeighted(1)
	}
	return e
}

// Mode reports the resolved execution mode.
func (e *Engine) Mode() control.Mode { return e.mode }

// Execute runs the plan in order. Every step is validated before it is
// dispatched; a validation failure halts the plan without touching a device.
// The returned result carries one outcome per attempted step.
func (e *Engine) Execute(ctx context.Context, plan schemas.ActionPlan, observe Observer) schemas.ExecutionResult {
	if e.live != nil {
		if err := e.live.Acquire(ctx, 1); err != nil {
			return schemas.ExecutionResult{
				Success: false,
				Summary: fmt.Sprintf("execution aborted before start: %v", err),
			}
		}
		defer e.live.Release(1)
	}

	result := schemas.ExecutionResult{Success: true}
	record := func(o schemas.StepOutcome) {
		result.Outcomes = append(result.Outcomes, o)
		if observe != nil {
			observe(o)
		}
	}

	for i, step := range plan {
		if err := ctx.Err(); err != nil {
			return e.fail(result, observe, i, step, fmt.Sprintf("execution cancelled: %v", err))
		}
		if err := step.Validate(); err != nil {
			return e.fail(result, observe, i, step, fmt.Sprintf("invalid step: %v", err))
		}

		data, err := e.dispatch(ctx, step)
		if err != nil {
			return e.fail(result, observe, i, step, err.Error())
		}

		record(schemas.StepOutcome{Index: i, Kind: step.Kind, Success: true, Data: data})
		e.logger.Debug("step completed",
			zap.Int("index", i),
			zap.String("kind", string(step.Kind)))
	}

	result.Summary = fmt.Sprintf("completed %d step(s)", len(plan))
	if len(plan) == 0 {
		result.Summary = "empty plan; nothing to do"
	}
	return result
}

// fail appends the failing outcome to the halted result, stamps the summary
// with the step that failed, and notifies the observer.
func (e *Engine) fail(result schemas.ExecutionResult, observe Observer, i int, step schemas.ActionStep, detail string) schemas.ExecutionResult {
	outcome := schemas.StepOutcome{Index: i, Kind: step.Kind, Success: false, Error: detail}
	result.Outcomes = append(result.Outcomes, outcome)
	if observe != nil {
		observe(outcome)
	}
	result.Success = false
	result.Summary = fmt.Sprintf("failed at step %d (%s): %s", i+1, step.Describe(), detail)
	e.logger.Warn("plan halted",
		zap.Int("index", i),
		zap.String("kind", string(step.Kind)),
		zap.String("detail", detail))
	return result
}

// dispatch routes one validated step to its control surface. The returned
// data string carries captured output for the observation steps.
func (e *Engine) dispatch(ctx context.Context, step schemas.ActionStep) (string, error) {
	switch step.Kind {
	case schemas.StepMoveMouse:
		return "", e.surfaces.Input.Move(ctx, *step.X, *step.Y)

	case schemas.StepClick:
		return "", e.surfaces.Input.Click(ctx, step.X, step.Y, step.Button)

	case schemas.StepTypeText:
		return "", e.surfaces.Input.Type(ctx, step.Text)

	case schemas.StepHotkey:
		return "", e.surfaces.Input.PressCombination(ctx, step.Keys)

	case schemas.StepOpenApp:
		ok, detail, err := e.surfaces.Apps.Open(ctx, step.App)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%s", detail)
		}
		return detail, nil

	case schemas.StepCaptureScreen:
		img, err := e.surfaces.Screen.Capture(ctx)
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("failed to encode capture: %w", err)
		}
		return base64.StdEncoding.EncodeToString(buf.Bytes()), nil

	case schemas.StepReadScreenText:
		return e.surfaces.Screen.ExtractText(ctx)

	case schemas.StepWait:
		// Waits never touch a device; they only hold the plan's place in
		// time, and they respect cancellation.
		timer := time.NewTimer(time.Duration(step.DurationMs) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
			return "", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}

	default:
		return "", fmt.Errorf("unknown step kind %q", step.Kind)
	}
}
