// Package sim provides the deterministic stand-in implementations of the
// device control surfaces. Every operation is side-effect-free on the real
// machine and returns a fixed synthetic value: Capture yields a 1x1 image,
// ExtractText yields the empty string, input operations succeed after
// recording the call, and Open succeeds for any application name. Identical
// inputs always produce identical results, which is what makes task
// execution reproducible in environments without display or input hardware.
package sim

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/control"
)

// Call records one dispatched operation, for diagnostics and tests.
type Call struct {
	Op   string
	Args string
}

// Backend implements all three control surfaces. A single Backend is shared
// across the surfaces so the recorded call log preserves global dispatch
// order. The log is guarded by a mutex because simulated executions are
// allowed to run concurrently.
type Backend struct {
	logger *zap.Logger

	mu    sync.Mutex
	calls []Call
}

// New creates a simulated backend.
func New(logger *zap.Logger) *Backend {
	return &Backend{logger: logger.Named("sim")}
}

// Surfaces exposes the backend as the three control interfaces.
func (b *Backend) Surfaces() control.Surfaces {
	return control.Surfaces{Screen: b, Input: b, Apps: b}
}

// Calls returns a copy of the recorded operations in dispatch order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

func (b *Backend) record(op, args string) {
	b.mu.Lock()
	b.calls = append(b.calls, Call{Op: op, Args: args})
	b.mu.Unlock()
	b.logger.Debug("simulated operation", zap.String("op", op), zap.String("args", args))
}

// Capture returns the fixed 1x1 placeholder image.
func (b *Backend) Capture(ctx context.Context) (image.Image, error) {
	b.record("capture", "")
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

// ExtractText returns the fixed empty recognition result.
func (b *Backend) ExtractText(ctx context.Context) (string, error) {
	b.record("extract_text", "")
	return "", nil
}

func (b *Backend) Move(ctx context.Context, x, y int) error {
	b.record("move", fmt.Sprintf("%d,%d", x, y))
	return nil
}

func (b *Backend) Click(ctx context.Context, x, y *int, button schemas.MouseButton) error {
	if button == "" {
		button = schemas.ButtonLeft
	}
	if x != nil && y != nil {
		b.record("click", fmt.Sprintf("%s@%d,%d", button, *x, *y))
	} else {
		b.record("click", string(button))
	}
	return nil
}

func (b *Backend) Type(ctx context.Context, text string) error {
	b.record("type", text)
	return nil
}

func (b *Backend) PressCombination(ctx context.Context, keys []string) error {
	b.record("hotkey", strings.Join(keys, "+"))
	return nil
}

// Open succeeds for any application name.
func (b *Backend) Open(ctx context.Context, name string) (bool, string, error) {
	b.record("open", name)
	return true, fmt.Sprintf("application %q opened (simulated)", name), nil
}
