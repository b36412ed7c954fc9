// Package api exposes boards over HTTP: reading a board and committing
// moves from clients that cannot hold a drag gesture themselves.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/managershow/esteira/internal/app"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Server holds the chi router and the application container
type Server struct {
	app    *app.App
	addr   string
	router chi.Router
}

// NewServer creates a Server with all routes configured
func NewServer(application *app.App, addr string) *Server {
	s := &Server{app: application, addr: addr}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler by delegating to the chi router
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildRouter constructs the chi router with all routes and middleware
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/tenants/{tenant}/boards/{kind}", func(r chi.Router) {
		r.Get("/", s.handleGetBoard)
		r.Post("/moves", s.handleMove)
		r.Post("/entities", s.handleCreateEntity)
		r.Get("/entities/{id}", s.handleGetEntity)
	})

	return r
}
