// Package server exposes the agent's control surface to the UI layer: the
// passive state reads, the on-demand refresh command, a live event stream,
// and the browser-profile helpers, all bound to localhost.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Arielbs/claude-usage-monitor/internal/browser"
	"github.com/Arielbs/claude-usage-monitor/internal/monitor"
)

// Server is the localhost control server.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates the control server. chrome may be nil when browser
// integration is disabled; the browser routes then answer 404.
func New(state *monitor.State, events *monitor.Broadcaster, scheduler *monitor.Scheduler, chrome *browser.Chrome) (*Server, error) {
	if state == nil {
		return nil, fmt.Errorf("missing state")
	}
	if events == nil {
		return nil, fmt.Errorf("missing event broadcaster")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("missing scheduler")
	}

	h := &handlers{
		state:     state,
		events:    events,
		scheduler: scheduler,
		chrome:    chrome,
	}

	logger := slog.Default()
	wrap := func(handler http.HandlerFunc) http.Handler {
		return applyMiddlewares(handler, Logging(logger), Recovery)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /v1/usage", wrap(h.getUsage))
	mux.Handle("GET /v1/account", wrap(h.getAccount))
	mux.Handle("GET /v1/last-error", wrap(h.getLastError))
	mux.Handle("POST /v1/refresh", wrap(h.refreshUsage))
	mux.Handle("GET /v1/events", wrap(h.streamEvents))

	if chrome != nil {
		mux.Handle("GET /v1/browser/profiles", wrap(h.listBrowserProfiles))
		mux.Handle("GET /v1/browser/profile", wrap(h.getBrowserProfile))
		mux.Handle("PUT /v1/browser/profile", wrap(h.putBrowserProfile))
		mux.Handle("POST /v1/open", wrap(h.openURL))
	}

	return &Server{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error
// channel. The caller is responsible for calling Shutdown() to stop the
// server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:     s,
		ReadTimeout: 10 * time.Second, // Clients are local; slow reads mean something is wrong
		IdleTimeout: 90 * time.Second,
		// No WriteTimeout: /v1/events streams for the subscriber's lifetime
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
