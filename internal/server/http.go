package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/sheetsgate/internal/instrumentation"
)

// DefaultReadHeaderTimeout is used when HTTPConfig.ReadHeaderTimeout is zero.
const DefaultReadHeaderTimeout = 10 * time.Second

// Mounter registers routes on a router. *gateway.Gateway implements it.
type Mounter interface {
	Mount(r chi.Router)
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	RequestTimeout    time.Duration
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// HTTPServer serves the gateway and the health endpoints.
type HTTPServer struct {
	config  HTTPConfig
	handler http.Handler
	health  *HealthChecker
	logger  *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listenAddr string
}

// NewHTTPServer builds the router with the middleware chain and mounts api
// and the health endpoints of health.
func NewHTTPServer(config HTTPConfig, api Mounter, health *HealthChecker) *HTTPServer {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(config.Logger, config.Metrics))
	r.Use(RecoverMiddleware(config.Logger))
	r.Use(cors.Handler(corsOptions(config.CORSOrigins)))
	r.Use(TimeoutMiddleware(config.RequestTimeout))

	if health != nil {
		health.RegisterHealthEndpoints(r)
	}
	api.Mount(r)

	return &HTTPServer{
		config:  config,
		handler: otelhttp.NewHandler(r, "sheetsgate"),
		health:  health,
		logger:  config.Logger,
	}
}

func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return opts
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until Shutdown. It
// returns nil after a graceful shutdown.
func (s *HTTPServer) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal is like Start but closes ready once the listener is bound.
func (s *HTTPServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	s.listenAddr = ln.Addr().String()
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("HTTP server listening", "addr", s.listenAddr)
	if ready != nil {
		close(ready)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.health != nil {
		s.health.SetReady(false)
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return srv.Shutdown(ctx)
}

// ListenAddr returns the bound address, or "" before the server started.
func (s *HTTPServer) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}
