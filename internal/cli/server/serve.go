// Package server holds the long-running cli commands
// e.g., esteira serve, esteira daemon
package server

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/managershow/esteira/internal/api"
	"github.com/managershow/esteira/internal/cli"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the boards over HTTP",
		Long: `Run the HTTP API and merge stage changes made by other clients into
the served boards.

With the redis backend changes arrive over Pub/Sub. With the embedded
database they arrive through the daemon when it is running; without it
the API still works but does not see other writers until restart.

Examples:
  esteira serve
  esteira serve --addr=0.0.0.0:8420
`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (defaults to http.addr from config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cliInstance, err := cli.GetCLIFromContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := cliInstance.Close(); err != nil {
			slog.Error("failed to close CLI", "error", err)
		}
	}()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cliInstance.App.Config().HTTP.Addr
	}
	srv := api.NewServer(cliInstance.App, addr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	changes, feed, err := cliInstance.Feed(gctx)
	switch {
	case errors.Is(err, cli.ErrNoFeed):
		slog.Warn("serving without live updates", "error", err)
	case err != nil:
		cancel()
		_ = g.Wait()
		return err
	default:
		defer func() { _ = feed.Close() }()
		g.Go(func() error {
			err := cliInstance.App.RunFeed(gctx, changes)
			if err == nil {
				slog.Warn("live change feed ended")
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	cmd.Printf("Serving boards on http://%s\n", addr)
	return g.Wait()
}
