// Package control defines the device control surfaces the execution engine
// drives (screen observation, input injection, application launching) and the
// process-wide mode that decides whether those surfaces touch real hardware
// or deterministic stand-ins.
package control

import (
	"context"
	"errors"
	"image"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Sentinel errors for backend capability failures. These are reported as
// step-level failures and halt the plan; a Live-mode execution is never
// silently downgraded to the simulated backend mid-plan.
var (
	// ErrCaptureUnavailable means no display surface exists to capture from.
	ErrCaptureUnavailable = errors.New("screen capture unavailable: no display surface")
	// ErrInjectionUnavailable means no input surface exists to inject into.
	ErrInjectionUnavailable = errors.New("input injection unavailable: no input surface")
	// ErrApplicationNotFound is the soft failure reason used by AppManager
	// implementations when the named application cannot be resolved.
	ErrApplicationNotFound = errors.New("application not found")
)

// ScreenReader observes the controlled display.
type ScreenReader interface {
	// Capture grabs the current screen contents.
	Capture(ctx context.Context) (image.Image, error)
	// ExtractText runs text recognition over the most recent capture,
	// capturing first if nothing has been captured yet.
	ExtractText(ctx context.Context) (string, error)
}

// InputController injects pointer and keyboard events.
type InputController interface {
	Move(ctx context.Context, x, y int) error
	// Click presses and releases a button. When x or y is nil the click
	// targets the current pointer position.
	Click(ctx context.Context, x, y *int, button schemas.MouseButton) error
	Type(ctx context.Context, text string) error
	// PressCombination holds the keys in order and releases them in reverse.
	PressCombination(ctx context.Context, keys []string) error
}

// AppManager launches applications on the controlled machine. Open fails
// softly: an unresolvable name is an expected outcome, reported as ok=false
// with a reason rather than an error. The error return is reserved for the
// launch mechanism itself breaking.
type AppManager interface {
	Open(ctx context.Context, name string) (ok bool, detail string, err error)
}

// Surfaces bundles the three control interfaces a backend provides.
type Surfaces struct {
	Screen ScreenReader
	Input  InputController
	Apps   AppManager
}
