// Package gateway hosts the local HTTP control surface: a catalog of named
// commands on GET and a single dispatch endpoint on POST. Transport errors
// use HTTP status codes; command failures ride inside a 200 response.
package gateway

import (
	"context"
	stdliberrors "errors"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odvcencio/switchboard/pkg/command"
	"github.com/odvcencio/switchboard/pkg/logging"
)

// Dispatcher executes one command and reports the outcome in-band.
type Dispatcher interface {
	Execute(ctx context.Context, req command.Request) command.Response
}

// Config holds the HTTP server settings.
type Config struct {
	BindAddress    string
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Version        string
}

// Server serves the command gateway over plain HTTP.
type Server struct {
	cfg        Config
	dispatcher Dispatcher
	events     *logging.Logger
	logger     *log.Logger

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// NewServer constructs a server around the given dispatcher.
func NewServer(cfg Config, dispatcher Dispatcher, events *logging.Logger) *Server {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1:3000"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost", "http://127.0.0.1"}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		events:     events,
		logger:     log.New(os.Stdout, "[gateway] ", log.LstdFlags),
	}
}

// Router builds the HTTP handler. Exposed so tests can drive it with
// httptest without binding a port.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(s.requestIDMiddleware)
	router.Use(s.metricsMiddleware)
	router.Use(s.corsMiddleware)
	router.Use(s.securityHeadersMiddleware)
	router.Use(s.recoverMiddleware)

	router.Get("/commands", s.handleCatalog)
	router.Get("/healthz", s.handleHealthz)
	router.Get("/metrics", s.handleMetrics)

	// Dispatch accepts a POST to any path; the command name travels in the
	// body, not the URL.
	router.Post("/*", s.handleDispatch)

	router.NotFound(s.handleUnroutable)
	router.MethodNotAllowed(s.handleUnroutable)

	return router
}

// handleUnroutable funnels POSTs that landed on a method-mismatched route
// back into dispatch and rejects everything else.
func (s *Server) handleUnroutable(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		s.handleDispatch(w, r)
		return
	}
	respondWireError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

// Start binds the listener and begins serving. Bind failures are returned
// synchronously; serving continues in the background until Stop. Starting
// an already-running server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	srv := s.httpServer
	go func() {
		s.logger.Printf("serving command gateway on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("gateway server error: %v", err)
			_ = s.events.Error(logging.CategoryGateway, "serve_failed", err.Error(), nil)
		}
	}()

	setListening(true)
	_ = s.events.Info(logging.CategoryGateway, "started", "", map[string]any{
		"addr": ln.Addr().String(),
	})
	return nil
}

// Addr reports the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully. Calling it on a server that never
// started is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.listener = nil
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	setListening(false)
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// handleCatalog serves the static command catalog as a bare array.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, command.Catalog())
}

// handleHealthz reports liveness and the build version.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

// handleDispatch decodes the command envelope and runs it. Decode failures
// are transport errors; execution failures are reported in-band with 200.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	if status, err := decodeJSONBody(w, r, &req, s.cfg.MaxBodyBytes); err != nil {
		if status == http.StatusRequestEntityTooLarge {
			respondWireError(w, status, "Request Entity Too Large")
			return
		}
		respondWireError(w, http.StatusBadRequest, "Invalid Request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	started := time.Now()
	resp := s.dispatcher.Execute(ctx, req)
	observeCommand(req.Command, resp.Success, time.Since(started))

	if resp.Success {
		_ = s.events.Info(logging.CategoryGateway, "command_ok", "", map[string]any{
			"command": req.Command,
		})
	} else {
		_ = s.events.Warn(logging.CategoryGateway, "command_failed", resp.Error, map[string]any{
			"command": req.Command,
		})
	}

	respondJSON(w, resp)
}
