package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/deskpilot/internal/observability"
	"github.com/xkilldash9x/deskpilot/internal/server"
	"github.com/xkilldash9x/deskpilot/internal/service"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the HTTP API for remote task execution",
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

		srv := server.New(appConfig.Server, appConfig.Engine.TaskTimeout,
			components.Interpreter, components.History, logger)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
