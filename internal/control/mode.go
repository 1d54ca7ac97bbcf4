package control

import (
	"os"
	"runtime"
)

// Mode selects between real device control and deterministic stand-ins. It is
// resolved exactly once at process startup and injected into every component
// that needs it; nothing mutates it afterwards, so concurrent reads are safe.
type Mode string

const (
	// Live dispatches operations to the real display, input, and
	// process-launch facilities of the machine.
	Live Mode = "live"
	// Simulated dispatches operations to deterministic stand-ins that never
	// touch real hardware. Every operation succeeds with a fixed, documented
	// synthetic value, so plans are reproducible in headless environments.
	Simulated Mode = "simulated"
)

// ResolveMode decides the process mode. An explicit force flag wins
// unconditionally; otherwise the mode follows a probe of the local display
// surface, mirroring how the service behaves when deployed on a headless box.
func ResolveMode(forceSimulation bool) Mode {
	if forceSimulation {
		return Simulated
	}
	if displayAvailable() {
		return Live
	}
	return Simulated
}

// displayAvailable probes for a usable display surface. Windows and macOS
// sessions always carry one; on other platforms the X11/Wayland environment
// variables are the cheapest reliable signal.
func displayAvailable() bool {
	switch runtime.GOOS {
	case "windows", "darwin":
		return true
	default:
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	}
}
