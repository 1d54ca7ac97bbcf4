// Package service is the composition root: it resolves the execution mode,
// selects and constructs the control backend, and wires the parser, engine,
// and optional history store into a ready-to-run component set.
package service

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/control"
	"github.com/xkilldash9x/deskpilot/internal/control/cdp"
	"github.com/xkilldash9x/deskpilot/internal/control/desktop"
	"github.com/xkilldash9x/deskpilot/internal/control/sim"
	"github.com/xkilldash9x/deskpilot/internal/engine"
	"github.com/xkilldash9x/deskpilot/internal/history"
	"github.com/xkilldash9x/deskpilot/internal/interpreter"
	"github.com/xkilldash9x/deskpilot/internal/parser"
)

// ComponentFactory creates the component set for one process instance. The
// abstraction keeps command-level logic testable.
type ComponentFactory interface {
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory creates the production component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create handles the full dependency injection and initialization.
func (f *concreteFactory) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	components := &Components{}

	// Release whatever was built when a later step fails.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("initialization failed, shutting down partially created components", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Mode resolution. Decided once; nothing downgrades mid-plan.
	mode := control.ResolveMode(cfg.Control.ForceSimulation)
	components.Mode = mode
	logger.Info("execution mode resolved",
		zap.String("mode", string(mode)),
		zap.Bool("forced", cfg.Control.ForceSimulation))

	// 2. Control backend.
	surfaces, err := f.buildSurfaces(ctx, cfg, mode, components, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}

	// 3. Engine and interpreter.
	eng := engine.New(surfaces, mode, logger)
	components.Interpreter = interpreter.New(parser.New(), eng, logger)
	logger.Debug("interpreter initialized")

	// 4. Task history, only when a database is configured.
	if cfg.Database.URL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			initializationErr = fmt.Errorf("failed to create database connection pool: %w", err)
			return nil, initializationErr
		}
		components.DBPool = dbPool

		store, err := history.New(ctx, dbPool, logger)
		if err != nil {
			initializationErr = fmt.Errorf("failed to initialize history store: %w", err)
			return nil, initializationErr
		}
		if err := store.EnsureSchema(ctx); err != nil {
			initializationErr = err
			return nil, initializationErr
		}
		components.History = store
		logger.Debug("task history store initialized")
	} else {
		logger.Debug("task history disabled: no database URL configured")
	}

	logger.Info("all components initialized successfully")
	return components, nil
}

// buildSurfaces constructs the control backend for the resolved mode and
// configured surface.
func (f *concreteFactory) buildSurfaces(ctx context.Context, cfg *config.Config, mode control.Mode, components *Components, logger *zap.Logger) (control.Surfaces, error) {
	if mode == control.Simulated {
		backend := sim.New(logger)
		components.Sim = backend
		logger.Debug("simulated backend initialized")
		return backend.Surfaces(), nil
	}

	switch cfg.Control.Surface {
	case "browser":
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if cfg.Control.Browser.Headless {
			opts = append(opts, chromedp.Headless)
		}
		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
		components.allocCancel = allocCancel

		tabCtx, tabCancel := chromedp.NewContext(allocCtx)
		components.tabCancel = tabCancel

		// Start the browser now so a broken Chrome install fails loudly at
		// boot rather than on the first task.
		if err := chromedp.Run(tabCtx); err != nil {
			return control.Surfaces{}, fmt.Errorf("failed to start browser surface: %w", err)
		}

		backend := cdp.New(tabCtx, cfg.Control.Browser.Apps, logger)
		logger.Debug("browser backend initialized")
		return backend.Surfaces(), nil

	default: // "auto" and "desktop" both land on the local desktop.
		backend := desktop.New(desktop.Config{
			InjectionRate: cfg.Control.InjectionRate,
			CaptureDir:    cfg.Control.CaptureDir,
		}, logger)
		logger.Debug("desktop backend initialized")
		return backend.Surfaces(), nil
	}
}
