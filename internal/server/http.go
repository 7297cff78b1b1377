package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skorolev/record-feed-service/internal/config"
	"github.com/skorolev/record-feed-service/internal/feed"
	"github.com/skorolev/record-feed-service/internal/metrics"
	"github.com/skorolev/record-feed-service/internal/problem"
)

// Server provides the HTTP API: the record feed plus monitoring endpoints
type Server struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	streamMgr *feed.Manager
	metrics   *metrics.Metrics

	// streamEncode overrides the record encoder; used by tests to inject
	// serialization faults.
	streamEncode feed.EncodeFunc

	startTime time.Time
}

// NewServer creates the HTTP server with all routes and middleware wired
func NewServer(cfg *config.Config, logger *slog.Logger, streamMgr *feed.Manager, m *metrics.Metrics) *Server {
	s := &Server{
		logger:    logger,
		config:    cfg,
		streamMgr: streamMgr,
		metrics:   m,
		startTime: time.Now(),
	}

	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.GetReadTimeout(),
		IdleTimeout: cfg.Server.GetIdleTimeout(),
		// No WriteTimeout: /stream responses are open-ended.
	}

	return s
}

// Handler returns the fully wired HTTP handler (exposed for tests).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures the router and middleware pipeline
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.correlationMiddleware, s.recoveryMiddleware, s.corsMiddleware, s.bodyLimitMiddleware)

	// OPTIONS is accepted everywhere so CORS preflights reach the
	// middleware chain instead of the method-mismatch fallback.
	methods := []string{http.MethodGet, http.MethodOptions}

	r.HandleFunc("/stream", s.withMetrics("/stream", s.handleStream)).Methods(methods...)
	r.HandleFunc("/health", s.withMetrics("/health", s.handleHealth)).Methods(methods...)
	r.HandleFunc("/streams", s.withMetrics("/streams", s.handleStreams)).Methods(methods...)
	r.HandleFunc("/stats", s.withMetrics("/stats", s.handleStats)).Methods(methods...)
	r.HandleFunc("/config", s.withMetrics("/config", s.handleConfig)).Methods(methods...)
	r.Handle("/metrics", promhttp.Handler()).Methods(methods...)
	r.HandleFunc("/", s.withMetrics("/", s.handleRoot)).Methods(methods...)

	// mux does not run Use middleware for unmatched requests; wrap the
	// fallbacks explicitly so 404/405 responses still carry correlation
	// and CORS headers.
	r.NotFoundHandler = s.chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.Render(w, r, problem.New(http.StatusNotFound, "Not found",
			fmt.Sprintf("no resource at %s", r.URL.Path)))
	}))
	r.MethodNotAllowedHandler = s.chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.Render(w, r, problem.New(http.StatusMethodNotAllowed, "Method not allowed",
			fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path)))
	}))

	return r
}

// chain applies the full middleware pipeline to a handler outside the
// router's Use mechanism.
func (s *Server) chain(h http.Handler) http.Handler {
	return s.correlationMiddleware(s.recoveryMiddleware(s.corsMiddleware(s.bodyLimitMiddleware(h))))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		slog.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server...")

	return s.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
		"service": map[string]interface{}{
			"name":    "record-feed-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"stream_manager": map[string]interface{}{
				"status":          "running",
				"active_sessions": s.streamMgr.ActiveCount(),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStreams implements the /streams endpoint
func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	sessions := s.streamMgr.Sessions()

	response := map[string]interface{}{
		"total_streams": len(sessions),
		"timestamp":     time.Now().UTC(),
		"streams":       sessions,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleStats implements the /stats endpoint
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().UTC(),
		"streams": map[string]interface{}{
			"active_count": s.streamMgr.ActiveCount(),
			"max_items":    s.config.Stream.MaxItems,
			"interval":     s.config.Stream.GetInterval().String(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleConfig implements the /config endpoint
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	sanitizedConfig := map[string]interface{}{
		"server": map[string]interface{}{
			"port":           s.config.Server.Port,
			"address":        s.config.Server.Address,
			"read_timeout":   s.config.Server.ReadTimeout,
			"idle_timeout":   s.config.Server.IdleTimeout,
			"max_body_bytes": s.config.Server.MaxBodyBytes,
		},
		"stream": map[string]interface{}{
			"max_items":          s.config.Stream.MaxItems,
			"interval_ms":        s.config.Stream.IntervalMs,
			"write_buffer_bytes": s.config.Stream.WriteBufferBytes,
		},
		"cors": map[string]interface{}{
			"allowed_origins": s.config.CORS.AllowedOrigins,
		},
		"logging": map[string]interface{}{
			"level":  s.config.Logging.Level,
			"format": s.config.Logging.Format,
			"output": s.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleRoot implements the / endpoint with API documentation
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	apiDoc := map[string]interface{}{
		"service": "Record Feed Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"GET /stream":  "Newline-delimited JSON record feed",
			"GET /health":  "Service health check",
			"GET /streams": "List all active stream sessions",
			"GET /stats":   "Service statistics",
			"GET /config":  "Service configuration",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
