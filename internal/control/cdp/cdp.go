// Package cdp implements the device control surfaces against a Chrome
// session over the DevTools protocol. It serves deployments where the
// controllable surface is a browser kiosk rather than a raw desktop: pointer
// and keyboard events are dispatched as raw CDP input events, captures come
// from Page.captureScreenshot, text extraction reads the document body, and
// "opening an application" navigates to a configured app-name to URL mapping.
package cdp

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/control"
)

// Backend drives a single browser tab. The tab context is created by the
// composition root (which owns the allocator lifecycle) and injected here.
type Backend struct {
	tabCtx context.Context
	logger *zap.Logger
	// apps maps lower-cased application names to the URLs that stand in for
	// them on the browser surface.
	apps map[string]string

	mu           sync.Mutex
	lastX, lastY float64
}

// New creates a browser-surface backend bound to the given chromedp tab
// context.
func New(tabCtx context.Context, apps map[string]string, logger *zap.Logger) *Backend {
	normalized := make(map[string]string, len(apps))
	for name, url := range apps {
		normalized[strings.ToLower(name)] = url
	}
	return &Backend{
		tabCtx: tabCtx,
		logger: logger.Named("cdp"),
		apps:   normalized,
	}
}

// Surfaces exposes the backend as the three control interfaces.
func (b *Backend) Surfaces() control.Surfaces {
	return control.Surfaces{Screen: b, Input: b, Apps: b}
}

// run executes a chromedp action on the tab. The action runs on a cancellable
// child of the tab context so the caller's deadline aborts an in-flight
// operation without tearing down the tab itself.
func (b *Backend) run(ctx context.Context, action chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(b.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, action); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", control.ErrInjectionUnavailable, err)
	}
	return nil
}

func cdpButton(b schemas.MouseButton) input.MouseButton {
	switch b {
	case schemas.ButtonRight:
		return input.Right
	case schemas.ButtonMiddle:
		return input.Middle
	default:
		return input.Left
	}
}

func (b *Backend) Move(ctx context.Context, x, y int) error {
	fx, fy := float64(x), float64(y)
	err := b.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, fx, fy).Do(c)
	}))
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.lastX, b.lastY = fx, fy
	b.mu.Unlock()
	return nil
}

func (b *Backend) Click(ctx context.Context, x, y *int, button schemas.MouseButton) error {
	if x != nil && y != nil {
		if err := b.Move(ctx, *x, *y); err != nil {
			return err
		}
	}
	b.mu.Lock()
	fx, fy := b.lastX, b.lastY
	b.mu.Unlock()

	btn := cdpButton(button)
	return b.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		if err := input.DispatchMouseEvent(input.MousePressed, fx, fy).
			WithButton(btn).WithClickCount(1).Do(c); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, fx, fy).
			WithButton(btn).WithClickCount(1).Do(c)
	}))
}

func (b *Backend) Type(ctx context.Context, text string) error {
	return b.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return input.InsertText(text).Do(c)
	}))
}

func (b *Backend) PressCombination(ctx context.Context, keys []string) error {
	var modifiers input.Modifier
	final := ""
	for _, k := range keys {
		switch strings.ToLower(k) {
		case "ctrl", "control":
			modifiers |= input.ModifierCtrl
		case "alt":
			modifiers |= input.ModifierAlt
		case "shift":
			modifiers |= input.ModifierShift
		case "meta", "cmd", "command", "win":
			modifiers |= input.ModifierCommand
		default:
			final = controlKeyName(k)
		}
	}
	if final == "" {
		return fmt.Errorf("hotkey %q has no non-modifier key", strings.Join(keys, "+"))
	}
	return b.run(ctx, chromedp.KeyEvent(final, chromedp.KeyModifiers(modifiers)))
}

// controlKeyName translates common key names into the runes chromedp's
// keyboard layer expects.
func controlKeyName(k string) string {
	switch strings.ToLower(k) {
	case "enter", "return":
		return kb.Enter
	case "tab":
		return kb.Tab
	case "esc", "escape":
		return kb.Escape
	case "backspace":
		return kb.Backspace
	case "delete", "del":
		return kb.Delete
	default:
		return strings.ToLower(k)
	}
}

// Capture screenshots the visible viewport.
func (b *Backend) Capture(ctx context.Context) (image.Image, error) {
	var buf []byte
	err := b.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", control.ErrCaptureUnavailable, err)
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return img, nil
}

// ExtractText reads the rendered text of the current document.
func (b *Backend) ExtractText(ctx context.Context) (string, error) {
	var text string
	err := b.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("%w: %v", control.ErrCaptureUnavailable, err)
	}
	return strings.TrimSpace(text), nil
}

// Open navigates the tab to the URL registered for the named application.
// Unregistered names fail softly, matching the AppManager contract.
func (b *Backend) Open(ctx context.Context, name string) (bool, string, error) {
	url, ok := b.apps[strings.ToLower(name)]
	if !ok {
		return false, fmt.Sprintf("%v: %q has no registered URL on the browser surface", control.ErrApplicationNotFound, name), nil
	}
	if err := b.run(ctx, chromedp.Navigate(url)); err != nil {
		return false, fmt.Sprintf("failed to open %q: %v", name, err), nil
	}
	b.logger.Info("navigated to application surface", zap.String("app", name), zap.String("url", url))
	return true, fmt.Sprintf("application %q opened", name), nil
}
