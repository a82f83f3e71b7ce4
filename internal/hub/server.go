package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iszland/snappy-bridge/internal/infrastructure/config"
	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Server is the HTTP listener hosting the broadcast hub.
//
// It serves the hub WebSocket endpoint under /{path}/hub and a health
// endpoint under /health. Created with NewServer and started with Start.
type Server struct {
	cfg    config.HubConfig
	logger *logging.Logger
	hub    *Hub
	server *http.Server
	cancel context.CancelFunc
}

// NewServer creates the hub HTTP server. The server does not listen until
// Start is called.
func NewServer(cfg config.HubConfig, hub *Hub, logger *logging.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		hub:    hub,
	}
}

// Start builds the router and launches the HTTP listener in a background
// goroutine. The server is stopped with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("hub server starting", "address", s.server.Addr, "path", "/"+s.cfg.Path+"/hub")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("hub server error", "error", err)
		}
	}()

	return nil
}

// buildRouter creates the HTTP router with all routes.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Route("/"+s.cfg.Path, func(r chi.Router) {
		r.Get("/hub", s.hub.handleSocket(s.cfg.WebSocket))
	})

	return r
}

// handleHealth reports liveness and the current client count.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","clients":%d}`, s.hub.ClientCount())
}

// Close gracefully shuts down the hub server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("hub server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down hub server: %w", err)
	}
	return nil
}
