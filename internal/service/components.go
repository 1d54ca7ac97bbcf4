package service

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xkilldash9x/deskpilot/internal/control"
	"github.com/xkilldash9x/deskpilot/internal/control/sim"
	"github.com/xkilldash9x/deskpilot/internal/history"
	"github.com/xkilldash9x/deskpilot/internal/interpreter"
	"github.com/xkilldash9x/deskpilot/internal/observability"
)

// Components holds the initialized services one process instance runs on.
// The factory builds it; commands consume it; Shutdown releases everything in
// reverse dependency order.
type Components struct {
	Interpreter *interpreter.Interpreter
	Mode        control.Mode

	// History is nil when no database URL is configured.
	History *history.Store
	DBPool  *pgxpool.Pool

	// Sim is set only in simulated mode, for diagnostics and tests.
	Sim *sim.Backend

	// Browser lifecycle cancels, set only on the browser surface.
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

// Shutdown gracefully releases all held resources. Safe on a partially
// initialized struct.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("beginning components shutdown sequence")

	if c.tabCancel != nil {
		c.tabCancel()
		logger.Debug("browser tab closed")
	}
	if c.allocCancel != nil {
		c.allocCancel()
		logger.Debug("browser allocator released")
	}
	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("database connection pool closed")
	}

	logger.Info("all components shut down")
}
