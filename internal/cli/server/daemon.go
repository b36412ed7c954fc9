package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/config"
	"github.com/managershow/esteira/internal/daemon"
)

// DaemonCmd returns the daemon command
func DaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the change broadcast daemon",
		Long: `Run the local daemon that relays stage changes between esteira
processes sharing the embedded database. Blocks until interrupted.`,
		RunE: runDaemon,
	}

	cmd.Flags().String("socket", "", "Socket path (defaults to daemon.socket_path from config)")

	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(
		cmd.Context(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancel()

	socketPath, _ := cmd.Flags().GetString("socket")
	if socketPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		socketPath = cfg.SocketPath()
	}

	server, err := daemon.NewServer(socketPath)
	if err != nil {
		return err
	}

	slog.Info("esteira daemon starting", "socket_path", socketPath, "pid", os.Getpid())

	// Blocks until shutdown
	if err := server.Start(ctx); err != nil {
		return err
	}

	slog.Info("esteira daemon shutting down gracefully")
	return nil
}
