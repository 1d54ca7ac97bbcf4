package schemas

import (
	"fmt"
	"strings"
)

// -- Action Schemas --

// StepKind identifies the primitive operation an ActionStep performs.
type StepKind string

const (
	StepMoveMouse      StepKind = "move_mouse"
	StepClick          StepKind = "click"
	StepTypeText       StepKind = "type_text"
	StepHotkey         StepKind = "hotkey"
	StepOpenApp        StepKind = "open_app"
	StepCaptureScreen  StepKind = "capture_screen"
	StepReadScreenText StepKind = "read_screen_text"
	StepWait           StepKind = "wait"
)

// MouseButton identifies which mouse button a click uses.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// ActionStep is a tagged variant over the operations the system can perform.
// Kind selects the variant; only the fields that variant needs are set.
// Steps never reference other steps.
type ActionStep struct {
	Kind StepKind `json:"kind"`

	// X and Y are screen coordinates. Required for move_mouse; optional for
	// click (a click without coordinates targets the current pointer
	// position), but they must be provided as a pair.
	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`

	// Button is the mouse button for click. Empty means left.
	Button MouseButton `json:"button,omitempty"`

	// Text is the literal text for type_text.
	Text string `json:"text,omitempty"`

	// Keys is the ordered key sequence for hotkey (e.g. ["ctrl", "c"]).
	Keys []string `json:"keys,omitempty"`

	// App is the application name for open_app.
	App string `json:"app,omitempty"`

	// DurationMs is the delay for wait.
	DurationMs int `json:"duration_ms,omitempty"`
}

// ActionPlan is an ordered, non-empty sequence of steps derived from one task
// description. Order is significant: steps serialize stateful operations on
// one shared machine and must execute in plan order.
type ActionPlan []ActionStep

// Validate performs the static parameter checks for a step. A failure here is
// a StepValidationError in the execution model: the step is recognized but
// its parameters are unusable, so the plan halts without touching a device.
func (s ActionStep) Validate() error {
	switch s.Kind {
	case StepMoveMouse:
		if s.X == nil || s.Y == nil {
			return fmt.Errorf("move_mouse requires both x and y coordinates")
		}
		if *s.X < 0 || *s.Y < 0 {
			return fmt.Errorf("move_mouse coordinates must be non-negative, got (%d,%d)", *s.X, *s.Y)
		}
	case StepClick:
		// Coordinates are optional but must come as a pair.
		if (s.X == nil) != (s.Y == nil) {
			return fmt.Errorf("click requires both x and y coordinates or neither")
		}
		if s.X != nil && (*s.X < 0 || *s.Y < 0) {
			return fmt.Errorf("click coordinates must be non-negative, got (%d,%d)", *s.X, *s.Y)
		}
		switch s.Button {
		case "", ButtonLeft, ButtonRight, ButtonMiddle:
		default:
			return fmt.Errorf("unknown mouse button %q", s.Button)
		}
	case StepTypeText:
		if s.Text == "" {
			return fmt.Errorf("type_text requires non-empty text")
		}
	case StepHotkey:
		if len(s.Keys) == 0 {
			return fmt.Errorf("hotkey requires at least one key")
		}
		for _, k := range s.Keys {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("hotkey contains an empty key name")
			}
		}
	case StepOpenApp:
		if strings.TrimSpace(s.App) == "" {
			return fmt.Errorf("open_app requires an application name")
		}
	case StepCaptureScreen, StepReadScreenText:
		// No parameters.
	case StepWait:
		if s.DurationMs < 0 {
			return fmt.Errorf("wait duration must be non-negative, got %dms", s.DurationMs)
		}
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}

// Describe returns a short human-readable label for the step, used in
// summaries and diagnostics.
func (s ActionStep) Describe() string {
	switch s.Kind {
	case StepMoveMouse:
		if s.X != nil && s.Y != nil {
			return fmt.Sprintf("move mouse to (%d,%d)", *s.X, *s.Y)
		}
		return "move mouse"
	case StepClick:
		button := s.Button
		if button == "" {
			button = ButtonLeft
		}
		if s.X != nil && s.Y != nil {
			return fmt.Sprintf("%s click at (%d,%d)", button, *s.X, *s.Y)
		}
		return fmt.Sprintf("%s click", button)
	case StepTypeText:
		return fmt.Sprintf("type %q", s.Text)
	case StepHotkey:
		return fmt.Sprintf("press %s", strings.Join(s.Keys, "+"))
	case StepOpenApp:
		return fmt.Sprintf("open application %q", s.App)
	case StepCaptureScreen:
		return "capture screen"
	case StepReadScreenText:
		return "read screen text"
	case StepWait:
		return fmt.Sprintf("wait %dms", s.DurationMs)
	default:
		return string(s.Kind)
	}
}
