// Package desktop implements the device control surfaces against the local
// operating system. Pointer and keyboard events are injected through the
// platform's automation tool (xdotool on X11, cliclick on macOS, a PowerShell
// SendKeys shim on Windows), screen captures go through the platform capture
// utility, and text recognition shells out to tesseract over the most recent
// capture. Application launches resolve through a per-platform alias table.
package desktop

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/control"
)

// Config tunes the live backend.
type Config struct {
	// InjectionRate caps injected input events per second. Bursts of plan
	// steps must not outrun the window system's event queue.
	InjectionRate float64
	// CaptureDir is where capture files are written. Empty means the OS
	// temp directory.
	CaptureDir string
}

// Backend drives the real machine. A single Backend serves all three control
// surfaces; lastCapture links ExtractText to the most recent Capture the way
// the recognition contract requires.
type Backend struct {
	cfg     Config
	logger  *zap.Logger
	tools   toolset
	limiter *rate.Limiter

	mu          sync.Mutex
	lastCapture string // path of the most recent capture file
}

// New creates a live backend for the current platform. Construction succeeds
// even when tools are missing; each operation reports its own capability
// error so that a plan failure names the step that needed the missing tool.
func New(cfg Config, logger *zap.Logger) *Backend {
	if cfg.InjectionRate <= 0 {
		cfg.InjectionRate = 20
	}
	if cfg.CaptureDir == "" {
		cfg.CaptureDir = os.TempDir()
	}
	return &Backend{
		cfg:     cfg,
		logger:  logger.Named("desktop"),
		tools:   platformToolset(),
		limiter: rate.NewLimiter(rate.Limit(cfg.InjectionRate), 1),
	}
}

// Surfaces exposes the backend as the three control interfaces.
func (b *Backend) Surfaces() control.Surfaces {
	return control.Surfaces{Screen: b, Input: b, Apps: b}
}

// runInjection paces and executes one input injection command.
func (b *Backend) runInjection(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return control.ErrInjectionUnavailable
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return fmt.Errorf("%w: %s not installed", control.ErrInjectionUnavailable, argv[0])
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("input injection failed (%s): %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (b *Backend) Move(ctx context.Context, x, y int) error {
	return b.runInjection(ctx, b.tools.move(x, y))
}

func (b *Backend) Click(ctx context.Context, x, y *int, button schemas.MouseButton) error {
	if button == "" {
		button = schemas.ButtonLeft
	}
	if x != nil && y != nil {
		if err := b.runInjection(ctx, b.tools.move(*x, *y)); err != nil {
			return err
		}
	}
	return b.runInjection(ctx, b.tools.click(button))
}

func (b *Backend) Type(ctx context.Context, text string) error {
	return b.runInjection(ctx, b.tools.typeText(text))
}

func (b *Backend) PressCombination(ctx context.Context, keys []string) error {
	return b.runInjection(ctx, b.tools.hotkey(keys))
}

// Capture grabs the screen into a PNG file and decodes it.
func (b *Backend) Capture(ctx context.Context) (image.Image, error) {
	path := filepath.Join(b.cfg.CaptureDir, "deskpilot-capture.png")
	argv := b.tools.capture(path)
	if len(argv) == 0 {
		return nil, control.ErrCaptureUnavailable
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %s not installed", control.ErrCaptureUnavailable, argv[0])
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("screen capture failed (%s): %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture file: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode capture: %w", err)
	}

	b.mu.Lock()
	b.lastCapture = path
	b.mu.Unlock()
	b.logger.Debug("screen captured", zap.String("path", path))
	return img, nil
}

// ExtractText runs tesseract over the most recent capture, capturing first
// when none exists yet.
func (b *Backend) ExtractText(ctx context.Context) (string, error) {
	b.mu.Lock()
	path := b.lastCapture
	b.mu.Unlock()

	if path == "" {
		if _, err := b.Capture(ctx); err != nil {
			return "", err
		}
		b.mu.Lock()
		path = b.lastCapture
		b.mu.Unlock()
	}

	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", fmt.Errorf("%w: tesseract not installed", control.ErrCaptureUnavailable)
	}

	// "stdout" makes tesseract write recognized text to standard output.
	cmd := exec.CommandContext(ctx, "tesseract", path, "stdout")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("text recognition failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// Open launches the named application. Resolution failures are soft: the
// caller receives ok=false with a reason, because "application not found" is
// an expected, common outcome rather than a fault in the launch mechanism.
func (b *Backend) Open(ctx context.Context, name string) (bool, string, error) {
	argv, ok := b.tools.openApp(name)
	if !ok {
		return false, fmt.Sprintf("%v: %q is not a known application", control.ErrApplicationNotFound, name), nil
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return false, fmt.Sprintf("failed to launch %q: %v", name, err), nil
	}
	// Detach: the launched application outlives the request. Reap the
	// process handle in the background to avoid zombies.
	go func() { _ = cmd.Wait() }()

	b.logger.Info("application launched", zap.String("app", name), zap.Int("pid", cmd.Process.Pid))
	return true, fmt.Sprintf("application %q opened", name), nil
}
