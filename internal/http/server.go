// Package http provides the brain REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/brain"
	"github.com/bparpette/MistralHackathon/internal/logging"
	"github.com/bparpette/MistralHackathon/internal/telemetry"
	"github.com/bparpette/MistralHackathon/pkg/auth"
)

const healthTimeout = 2 * time.Second

// Server provides HTTP endpoints for the brain.
type Server struct {
	echo    *echo.Echo
	svc     *brain.Service
	logger  *logging.Logger
	metrics *HTTPMetrics
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// Meter records request metrics. Nil uses the global meter provider.
	Meter metric.Meter
	// Telemetry, when set, has its export status reported by /health.
	Telemetry TelemetryStatus
}

// TelemetryStatus is satisfied by *telemetry.Telemetry.
type TelemetryStatus interface {
	Status() telemetry.Status
}

// NewServer creates a new HTTP server.
func NewServer(svc *brain.Service, logger *logging.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, errors.New("brain service cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		svc:     svc,
		logger:  logger,
		metrics: NewHTTPMetrics(cfg.Meter, logger.Underlying()),
		config:  cfg,
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestContext)
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(s.accessLog)

	s.registerRoutes()
	return s, nil
}

// requestContext copies the request id into the request context so every
// log line of the call carries it.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), rid)))
		return next(c)
	}
}

// accessLog commits handler errors itself so the status it logs, and the
// one the metrics middleware records, is the one the client sees.
func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1", auth.RequesterMiddleware())
	v1.POST("/memories", s.handleAddMemory)
	v1.GET("/memories", s.handleListMemories)
	v1.GET("/memories/:id", s.handleGetMemory)
	v1.DELETE("/memories/:id", s.handleDeleteMemory)
	v1.POST("/memories/:id/verify", s.handleVerifyMemory)
	v1.POST("/search", s.handleSearch)
	v1.GET("/workspaces/:id/insights", s.handleInsights)
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// handleHealth reports whether the vector index answers. Telemetry state
// is informational: a degraded exporter never fails the check.
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	if s.config.Telemetry != nil {
		resp.Telemetry = s.config.Telemetry.Status().String()
	}
	if err := s.svc.Health(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", zap.Error(err))
		resp.Status, resp.Error = "unavailable", "index unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
