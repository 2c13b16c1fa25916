// Package http provides the HTTP API for agentd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/ingest"
	"github.com/fyrsmithlabs/agentd/internal/service"
)

// Executor runs one agent request end to end.
type Executor interface {
	Execute(ctx context.Context, req service.ExecuteRequest) (*service.Response, error)
}

// Ingester loads documentation into the vector store.
type Ingester interface {
	Ingest(ctx context.Context, docs []ingest.Document) (*ingest.Result, error)
}

// Server provides HTTP endpoints for agentd.
type Server struct {
	echo     *echo.Echo
	executor Executor
	ingester Ingester
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RequestTimeout bounds one agent execution. Zero disables the
	// per-request deadline.
	RequestTimeout time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(executor Executor, ingester Ingester, logger *zap.Logger, cfg *Config) (*Server, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		executor: executor,
		ingester: ingester,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/healthz", s.handleHealth)

	v1 := s.echo.Group("/v1")
	v1.POST("/agent/execute", s.handleExecute)
	v1.POST("/docs/ingest", s.handleIngest)
}

// IngestRequest is the request body for POST /v1/docs/ingest.
type IngestRequest struct {
	Documents []ingest.Document `json:"documents"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleExecute runs the agent workflow for one prompt.
func (s *Server) handleExecute(c echo.Context) error {
	var req service.ExecuteRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid execute request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt field is required")
	}

	ctx := c.Request().Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	resp, err := s.executor.Execute(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.logger.Warn("agent execution timed out", zap.Error(err))
			return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
		}
		s.logger.Error("agent execution failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}

// handleIngest loads documentation into the vector store.
func (s *Server) handleIngest(c echo.Context) error {
	if s.ingester == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "ingestion is not configured")
	}

	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}

	result, err := s.ingester.Ingest(c.Request().Context(), req.Documents)
	if err != nil {
		s.logger.Error("documentation ingestion failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
