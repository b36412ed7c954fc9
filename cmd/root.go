package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/cli/board"
	"github.com/managershow/esteira/internal/cli/entity"
	"github.com/managershow/esteira/internal/cli/server"
	"github.com/managershow/esteira/internal/cli/use"
	"github.com/managershow/esteira/internal/config"
	"github.com/managershow/esteira/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "esteira",
	Short: "Esteira - stage pipelines for Manager Show boards",
	Long: `Esteira moves shows across the Agenda and leads across the CRM,
validating and committing every stage change.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
}

func init() {
	rootCmd.AddCommand(board.BoardCmd())
	rootCmd.AddCommand(entity.EntityCmd())
	rootCmd.AddCommand(use.UseCmd())
	rootCmd.AddCommand(server.ServeCmd())
	rootCmd.AddCommand(server.DaemonCmd())
}

// initLogging sends slog output to the data dir. A broken config is left
// for the command itself to report.
func initLogging(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return nil
	}
	if err := logging.Init(cfg.DataDir); err != nil {
		slog.Debug("file logging unavailable", "error", err)
	}
	return nil
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
