package app

import (
	"log/slog"

	"github.com/managershow/esteira/internal/database"
	"github.com/managershow/esteira/internal/events"
)

// Option is a functional option for configuring App initialization
type Option func(*appConfig)

// appConfig holds the configuration for App initialization
type appConfig struct {
	eventClient events.EventPublisher
	logger      *slog.Logger
	store       database.DataStore
	clientID    string
}

// WithEventPublisher sets the event publisher for the application
func WithEventPublisher(ec events.EventPublisher) Option {
	return func(cfg *appConfig) {
		cfg.eventClient = ec
	}
}

// WithLogger sets the logger for the application
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *appConfig) {
		cfg.logger = logger
	}
}

// WithPersister sets the backend boards are loaded from and committed to
func WithPersister(store database.DataStore) Option {
	return func(cfg *appConfig) {
		cfg.store = store
	}
}

// WithClientID fixes the origin stamped on this process's changes.
// A random ID is generated otherwise.
func WithClientID(id string) Option {
	return func(cfg *appConfig) {
		cfg.clientID = id
	}
}
