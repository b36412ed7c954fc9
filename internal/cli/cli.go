package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/managershow/esteira/internal/app"
	"github.com/managershow/esteira/internal/config"
	"github.com/managershow/esteira/internal/database"
	"github.com/managershow/esteira/internal/events"
	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/remote"
)

// The shared Redis store is a drop-in backend for the embedded database
var _ database.DataStore = (*remote.Client)(nil)

type contextKey string

const appKey contextKey = "app"

// WithApp stores a prebuilt application in ctx. Commands run with such a
// context use it instead of opening the configured backend.
func WithApp(ctx context.Context, application *app.App) context.Context {
	return context.WithValue(ctx, appKey, application)
}

// CLI represents the CLI application context
type CLI struct {
	App     *app.App // Application container with services
	closers []io.Closer

	remote *remote.Client // set for the redis backend
	events *events.Client // set when the daemon is reachable
}

// ErrNoFeed is returned by Feed when no live change source is available
var ErrNoFeed = errors.New("no live change feed: daemon not running")

// GetCLIFromContext returns the CLI for a command, reusing an application
// injected with WithApp when present
func GetCLIFromContext(ctx context.Context) (*CLI, error) {
	if ctx != nil {
		if application, ok := ctx.Value(appKey).(*app.App); ok && application != nil {
			return &CLI{App: application}, nil
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return NewCLI(ctx)
}

// NewCLI loads the config, opens the configured backend and, for the
// embedded database, an optional daemon connection
func NewCLI(ctx context.Context) (*CLI, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewCLIWithConfig(ctx, cfg)
}

// NewCLIWithConfig is NewCLI with an explicit config
func NewCLIWithConfig(ctx context.Context, cfg *config.Config) (*CLI, error) {
	c := &CLI{}
	opts := []app.Option{}

	switch cfg.Store.Backend {
	case config.BackendRedis:
		client, err := remote.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr, DB: cfg.Store.RedisDB})
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Store.RedisAddr, err)
		}
		c.closers = append(c.closers, client)
		c.remote = client
		opts = append(opts, app.WithPersister(client))

	default:
		db, err := database.InitDB(ctx, cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.closers = append(c.closers, db)

		// Try to connect to daemon (optional - silent fallback)
		var publisher events.EventPublisher
		if client, err := events.NewClient(cfg.SocketPath(), cfg.Debounce()); err == nil {
			if err := client.Connect(ctx); err == nil {
				publisher = client
				c.events = client
				opts = append(opts, app.WithEventPublisher(client))
			} else {
				slog.Debug("daemon not available", "socket_path", cfg.SocketPath(), "error", err)
				_ = client.Close()
			}
		}
		opts = append(opts, app.WithPersister(database.NewEntityRepo(db, publisher)))
	}

	application, err := app.New(cfg, opts...)
	if err != nil {
		_ = c.closeResources()
		return nil, err
	}
	c.App = application
	return c, nil
}

// Close cleans up CLI resources. An injected application is left open for
// its owner.
func (c *CLI) Close() error {
	if len(c.closers) == 0 {
		return nil
	}
	err := c.App.Close()
	return errors.Join(err, c.closeResources())
}

func (c *CLI) closeResources() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Feed opens the live stage-change source for the configured backend: a
// pattern subscription on redis, or an all-tenant daemon subscription for
// the embedded database. Decode and connection errors are logged. The
// returned closer stops the feed.
func (c *CLI) Feed(ctx context.Context) (<-chan models.StageChange, io.Closer, error) {
	switch {
	case c.remote != nil:
		sub, err := c.remote.SubscribeAll(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to subscribe to stage events: %w", err)
		}
		go func() {
			for err := range sub.Errors() {
				slog.Debug("dropped stage event", "error", err)
			}
		}()
		return sub.Events(), sub, nil

	case c.events != nil:
		if err := c.events.Subscribe(""); err != nil {
			return nil, nil, fmt.Errorf("failed to subscribe to daemon: %w", err)
		}
		in, err := c.events.Listen(ctx)
		if err != nil {
			return nil, nil, err
		}
		// The events client itself is closed with the CLI
		return app.FromEvents(ctx, in), nopCloser{}, nil

	default:
		return nil, nil, ErrNoFeed
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
