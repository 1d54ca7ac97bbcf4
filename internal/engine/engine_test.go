package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/control"
	"github.com/xkilldash9x/deskpilot/internal/control/sim"
)

func intPtr(v int) *int { return &v }

// failingInput wraps the simulated input surface and fails a chosen
// operation, so halt behavior can be observed mid-plan.
type failingInput struct {
	control.InputController
	failOn string
}

func (f *failingInput) Type(ctx context.Context, text string) error {
	if f.failOn == "type" {
		return errors.New("keyboard unplugged")
	}
	return f.InputController.Type(ctx, text)
}

func TestExecute_RunsStepsInOrder(t *testing.T) {
	backend := sim.New(zap.NewNop())
	e := New(backend.Surfaces(), control.Simulated, zap.NewNop())

	plan := schemas.ActionPlan{
		{Kind: schemas.StepOpenApp, App: "notepad"},
		{Kind: schemas.StepTypeText, Text: "hello"},
		{Kind: schemas.StepMoveMouse, X: intPtr(10), Y: intPtr(20)},
		{Kind: schemas.StepClick, Button: schemas.ButtonLeft},
		{Kind: schemas.StepHotkey, Keys: []string{"ctrl", "s"}},
	}

	result := e.Execute(context.Background(), plan, nil)
	require.True(t, result.Success)
	require.Len(t, result.Outcomes, len(plan))
	for i, o := range result.Outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, plan[i].Kind, o.Kind)
		assert.True(t, o.Success)
	}

	ops := make([]string, 0, len(plan))
	for _, c := range backend.Calls() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{"open", "type", "move", "click", "hotkey"}, ops)
}

func TestExecute_HaltsOnFirstFailure(t *testing.T) {
	backend := sim.New(zap.NewNop())
	surfaces := backend.Surfaces()
	surfaces.Input = &failingInput{InputController: surfaces.Input, failOn: "type"}
	e := New(surfaces, control.Simulated, zap.NewNop())

	plan := schemas.ActionPlan{
		{Kind: schemas.StepOpenApp, App: "notepad"},
		{Kind: schemas.StepTypeText, Text: "hello"},
		{Kind: schemas.StepHotkey, Keys: []string{"ctrl", "s"}},
	}

	result := e.Execute(context.Background(), plan, nil)
	require.False(t, result.Success)
	// Outcomes cover only the attempted steps: the hotkey never ran.
	require.Len(t, result.Outcomes, 2)
	assert.True(t, result.Outcomes[0].Success)
	assert.False(t, result.Outcomes[1].Success)
	assert.Contains(t, result.Outcomes[1].Error, "keyboard unplugged")
	assert.Contains(t, result.Summary, "failed at step 2")

	for _, c := range backend.Calls() {
		assert.NotEqual(t, "hotkey", c.Op)
	}
}

func TestExecute_ValidationFailureTouchesNoDevice(t *testing.T) {
	backend := sim.New(zap.NewNop())
	e := New(backend.Surfaces(), control.Simulated, zap.NewNop())

	plan := schemas.ActionPlan{
		{Kind: schemas.StepMoveMouse, X: intPtr(10)}, // missing y
		{Kind: schemas.StepTypeText, Text: "never typed"},
	}

	result := e.Execute(context.Background(), plan, nil)
	require.False(t, result.Success)
	require.Len(t, result.Outcomes, 1)
	assert.Contains(t, result.Outcomes[0].Error, "invalid step")
	assert.Empty(t, backend.Calls())
}

func TestExecute_ObserverSeesOutcomesInOrder(t *testing.T) {
	backend := sim.New(zap.NewNop())
	e := New(backend.Surfaces(), control.Simulated, zap.NewNop())

	plan := schemas.ActionPlan{
		{Kind: schemas.StepCaptureScreen},
		{Kind: schemas.StepReadScreenText},
	}

	var seen []int
	result := e.Execute(context.Background(), plan, func(o schemas.StepOutcome) {
		seen = append(seen, o.Index)
	})
	require.True(t, result.Success)
	assert.Equal(t, []int{0, 1}, seen)

	// Capture data is a decodable base64 payload; simulated text is empty.
	_, err := base64.StdEncoding.DecodeString(result.Outcomes[0].Data)
	assert.NoError(t, err)
	assert.NotEmpty(t, result.Outcomes[0].Data)
	assert.Empty(t, result.Outcomes[1].Data)
}

func TestExecute_WaitHonorsCancellation(t *testing.T) {
	backend := sim.New(zap.NewNop())
	e := New(backend.Surfaces(), control.Simulated, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := e.Execute(ctx, schemas.ActionPlan{
		{Kind: schemas.StepWait, DurationMs: 5000},
	}, nil)
	require.False(t, result.Success)
	assert.Less(t, time.Since(start), time.Second)
}

type slowInput struct {
	control.InputController
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (s *slowInput) Type(ctx context.Context, text string) error {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	time.Sleep(10 * time.Millisecond)
	s.inFlight.Add(-1)
	return nil
}

func TestExecute_LiveModeSerializesPlans(t *testing.T) {
	backend := sim.New(zap.NewNop())
	surfaces := backend.Surfaces()
	slow := &slowInput{InputController: surfaces.Input}
	surfaces.Input = slow
	e := New(surfaces, control.Live, zap.NewNop())

	plan := schemas.ActionPlan{{Kind: schemas.StepTypeText, Text: "abc"}}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := e.Execute(context.Background(), plan, nil)
			assert.True(t, result.Success)
		}()
	}
	wg.Wait()
	assert.False(t, slow.overlap.Load(), "live executions overlapped")
}

func TestExecute_OpenAppSoftFailureHalts(t *testing.T) {
	backend := sim.New(zap.NewNop())
	surfaces := backend.Surfaces()
	surfaces.Apps = appNotFound{}
	e := New(surfaces, control.Simulated, zap.NewNop())

	result := e.Execute(context.Background(), schemas.ActionPlan{
		{Kind: schemas.StepOpenApp, App: "nonexistent"},
		{Kind: schemas.StepTypeText, Text: "never"},
	}, nil)
	require.False(t, result.Success)
	require.Len(t, result.Outcomes, 1)
	assert.Contains(t, result.Outcomes[0].Error, "nonexistent")
}

func TestExecute_FailingOutcomeInResultAndObserver(t *testing.T) {
	backend := sim.New(zap.NewNop())
	surfaces := backend.Surfaces()
	surfaces.Input = &failingInput{InputController: surfaces.Input, failOn: "type"}
	e := New(surfaces, control.Simulated, zap.NewNop())

	var observed []schemas.StepOutcome
	result := e.Execute(context.Background(), schemas.ActionPlan{
		{Kind: schemas.StepTypeText, Text: "hello"},
	}, func(o schemas.StepOutcome) {
		observed = append(observed, o)
	})

	require.False(t, result.Success)
	// The failing step's outcome is part of the returned result, not just
	// the observer stream, and both carry the same error detail.
	require.Len(t, result.Outcomes, 1)
	assert.False(t, result.Outcomes[0].Success)
	assert.Contains(t, result.Outcomes[0].Error, "keyboard unplugged")
	require.Len(t, observed, 1)
	assert.Equal(t, result.Outcomes[0], observed[0])
}

type appNotFound struct{}

func (appNotFound) Open(ctx context.Context, name string) (bool, string, error) {
	return false, fmt.Sprintf("%v: %q is not a known application", control.ErrApplicationNotFound, name), nil
}
