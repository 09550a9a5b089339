// Package http provides the HTTP API for knowd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/cache"
	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/logging"
	"github.com/fyrsmithlabs/knowd/internal/services"
)

// Server provides HTTP endpoints for sync, search, and fast-path reads.
type Server struct {
	echo     *echo.Echo
	registry services.Registry
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(registry services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8600}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		registry: registry,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/tenants/:tenant_id/sync", s.handleSync)
	v1.POST("/search", s.handleSearch)
	v1.GET("/tenants/:tenant_id/rules", s.handleCachedRules)
}

// Start begins serving and blocks until the listener fails or closes.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleSync runs a full tenant reconciliation and returns the combined
// result. Sub-sync failures are reflected in the result, not in the HTTP
// status.
func (s *Server) handleSync(c echo.Context) error {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}

	ctx := logging.ContextWithTenant(c.Request().Context(), tenantID)
	result := s.registry.Orchestrator().SyncTenant(ctx, tenantID)
	return c.JSON(http.StatusOK, result)
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	TenantID       string  `json:"tenant_id"`
	Query          string  `json:"query"`
	Limit          int     `json:"limit,omitempty"`
	ScoreThreshold float32 `json:"score_threshold,omitempty"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TenantID == "" || req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id and query are required")
	}

	ctx := logging.ContextWithTenant(c.Request().Context(), req.TenantID)
	matches := s.registry.Ranker().Search(ctx, req.TenantID, req.Query, req.Limit, req.ScoreThreshold)
	return c.JSON(http.StatusOK, matches)
}

// handleCachedRules serves the fast-path snapshot of a tenant's active
// records straight from the cache, skipping ranking entirely.
func (s *Server) handleCachedRules(c echo.Context) error {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}

	fc := s.registry.Cache()
	if fc == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "cache not configured")
	}

	ctx := c.Request().Context()
	kindParam := c.QueryParam("kind")

	var (
		snap *cache.Snapshot
		err  error
	)
	if kindParam == "" {
		snap, err = cache.ReadCombinedSnapshot(ctx, fc, tenantID)
	} else {
		kind, kerr := knowledge.ParseKind(kindParam)
		if kerr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown kind")
		}
		snap, err = cache.ReadSnapshot(ctx, fc, tenantID, kind)
	}
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return echo.NewHTTPError(http.StatusNotFound, "no cached snapshot, run a sync first")
		}
		s.logger.Warn("cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "cache read failed")
	}

	return c.JSON(http.StatusOK, snap)
}
