// Package api provides the HTTP surface of the bridge: webhook intake
// for chat platforms, device listing, group broadcast, and notification
// history.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tychang/imbridge/internal/binding"
	"github.com/tychang/imbridge/internal/device"
	"github.com/tychang/imbridge/internal/dispatch"
	"github.com/tychang/imbridge/internal/history"
	"github.com/tychang/imbridge/internal/infrastructure/config"
	"github.com/tychang/imbridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// MessageHandler processes one inbound chat message. *dispatch.Dispatcher
// satisfies this.
type MessageHandler interface {
	HandleMessage(msg dispatch.Inbound) error
}

// Bindings is the subset of the binding registry the API reads.
type Bindings interface {
	BoundChats(deviceID string) []binding.Binding
	Snapshot() map[string][]binding.Binding
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Handler  MessageHandler
	Catalog  *device.Catalog
	Bindings Bindings
	Notifier dispatch.Notifier
	History  history.Repository // optional; history routes 404 without it
	Version  string
}

// Server is the bridge's HTTP server.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	handler  MessageHandler
	catalog  *device.Catalog
	bindings Bindings
	notifier dispatch.Notifier
	history  history.Repository
	version  string
	server   *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, handler, catalog)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("device catalog is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		handler:  deps.Handler,
		catalog:  deps.Catalog,
		bindings: deps.Bindings,
		notifier: deps.Notifier,
		history:  deps.History,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server is stopped with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
