package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/observability"
	"github.com/xkilldash9x/deskpilot/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run \"task description\"",
	Short: "Parse and execute one task, printing the result as JSON",
	Example: `  deskpilot run "open notepad and type hello world"
  deskpilot run --simulate "click at 100,200 then press ctrl+s"`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		components, err := service.NewComponentFactory().Create(ctx, appConfig, logger)
		if err != nil {
			return err
		}
		defer components.Shutdown()

		taskID := uuid.NewString()
		started := time.Now()

		execCtx, cancel := context.WithTimeout(ctx, appConfig.Engine.TaskTimeout)
		defer cancel()
		result := components.Interpreter.Execute(execCtx, args[0], nil)

		if components.History != nil {
			rec := schemas.TaskRecord{
				TaskID:     taskID,
				Text:       args[0],
				Mode:       string(components.Mode),
				Success:    result.Success,
				Summary:    result.Summary,
				Outcomes:   result.Outcomes,
				StartedAt:  started,
				FinishedAt: time.Now(),
			}
			if err := components.History.SaveRecord(ctx, rec); err != nil {
				logger.Warn("failed to persist task record", zap.Error(err))
			}
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if !result.Success {
			return fmt.Errorf("task failed: %s", result.Summary)
		}
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:          "plan \"task description\"",
	Short:        "Parse a task and print the derived action plan without executing it",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		// Force simulation: previewing a plan must never touch a device.
		cfg := *appConfig
		cfg.Control.ForceSimulation = true

		components, err := service.NewComponentFactory().Create(cmd.Context(), &cfg, logger)
		if err != nil {
			return err
		}
		defer components.Shutdown()

		plan, err := components.Interpreter.Plan(args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
}
