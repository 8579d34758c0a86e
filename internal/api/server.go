// Package api provides the tellix HTTP API. It serves the line protocol over
// plain HTTP and WebSocket, plus health, version, metrics and documentation.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/anstrom/tellix/docs" // Registers the OpenAPI document
	apihandlers "github.com/anstrom/tellix/internal/api/handlers"
	"github.com/anstrom/tellix/internal/api/middleware"
	"github.com/anstrom/tellix/internal/auth"
	"github.com/anstrom/tellix/internal/config"
	"github.com/anstrom/tellix/internal/logging"
	"github.com/anstrom/tellix/internal/metrics"
	"github.com/anstrom/tellix/internal/probe"
	"github.com/anstrom/tellix/internal/protocol"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	maxHeaderBytes        = 1 << 20
)

const apiPrefix = "/api/v1"

// publicPaths never require an API key.
var publicPaths = []string{
	"/api/v1/health",
	"/api/v1/version",
	"/metrics",
	"/swagger/",
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	prober     *probe.Prober
	dispatcher *protocol.Dispatcher
	websocket  *apihandlers.WebSocketHandler
	keys       *auth.KeyStore
	logger     *logging.Logger
	metrics    *metrics.PrometheusMetrics
	version    string
}

// New creates a new API server on top of prober. Only the api section of
// cfg is used.
func New(cfg *config.Config, prober *probe.Prober, version string, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("api server requires a configuration")
	}
	if prober == nil {
		return nil, fmt.Errorf("api server requires a prober")
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("api")

	s := &Server{
		router:     mux.NewRouter(),
		config:     cfg,
		prober:     prober,
		dispatcher: protocol.NewDispatcher(prober, logger),
		keys:       auth.NewKeyStore(cfg.API.APIKeyHashes),
		logger:     logger,
		metrics:    metrics.GetGlobalMetrics(),
		version:    version,
	}
	s.websocket = apihandlers.NewWebSocketHandler(s.dispatcher, cfg.API.CORSOrigins, logger)

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.GetAPIAddress(),
		Handler:           s.handler(),
		ReadTimeout:       cfg.API.ReadTimeout,
		ReadHeaderTimeout: cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       cfg.API.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		ErrorLog:          logger.StdLogger(),
	}

	return s, nil
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.GetAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.GetAddress(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on an existing listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("Starting API server",
		"address", listener.Addr().String(),
		"auth_enabled", s.config.IsAuthEnabled(),
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	// Hijacked connections are invisible to Shutdown
	_ = s.websocket.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	probeHandler := apihandlers.NewProbeHandler(s.dispatcher, s.logger)
	healthHandler := apihandlers.NewHealthHandler(s.prober, s.version, s.logger)

	// Full paths on the root router, so a wrong method yields 405 and not 404
	s.router.HandleFunc(apiPrefix+"/probe", probeHandler.Probe).Methods(http.MethodPost)
	s.router.HandleFunc(apiPrefix+"/ws", s.websocket.Serve).Methods(http.MethodGet)
	s.router.HandleFunc(apiPrefix+"/health", healthHandler.Health).Methods(http.MethodGet)
	s.router.HandleFunc(apiPrefix+"/version", healthHandler.Version).Methods(http.MethodGet)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetRegistry(), promhttp.HandlerOpts{
		ErrorLog: s.logger.StdLogger(),
	})).Methods(http.MethodGet)

	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)

	s.router.NotFoundHandler = apihandlers.NotFound(s.logger)
	s.router.MethodNotAllowedHandler = apihandlers.MethodNotAllowed(s.logger)
}

// setupMiddleware configures the router middleware. Route-aware middleware
// runs after matching, so metrics see the route template.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.Authentication(s.keys, publicPaths, s.logger))
	s.router.Use(middleware.ContentType())
	s.router.Use(middleware.MaxBodySize(s.config.API.MaxRequestSize))
}

// handler wraps the router with the middleware that must see every
// request, matched or not.
func (s *Server) handler() http.Handler {
	var h http.Handler = s.router
	if len(s.config.API.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.config.API.CORSOrigins),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", middleware.APIKeyHeader}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
		)(h)
	}
	h = middleware.SecurityHeaders()(h)
	h = middleware.Logging(s.logger)(h)
	return middleware.RequestID()(h)
}

// index describes the API for root requests.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"service":"tellix","version":%q,"endpoints":{"probe":"/api/v1/probe",`+
		`"websocket":"/api/v1/ws","health":"/api/v1/health","metrics":"/metrics","docs":"/swagger/"}}`+"\n",
		s.version)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetAddress returns the configured listen address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}
