// Package server exposes license checks over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/diagkit/licensecheck/internal/doctor"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/report"
	"github.com/diagkit/licensecheck/internal/state"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

const (
	requestIDKey    = "request_id"
	shutdownTimeout = 5 * time.Second
)

// HealthSource provides the most recent doctor report.
type HealthSource interface {
	Last() (doctor.HealthReport, bool)
}

// CheckRequest is the body of POST /api/licenses/check.
type CheckRequest struct {
	Company   string `json:"company"`
	Reference string `json:"reference"`
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics enables /metrics and alert gauges.
func WithMetrics(metrics *Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithHealth wires /healthz to a doctor manager.
func WithHealth(health HealthSource) Option {
	return func(s *Server) {
		s.health = health
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer handed to per-request controllers.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithThresholds sets urgency thresholds for response entries.
func WithThresholds(thresholds license.Thresholds) Option {
	return func(s *Server) {
		s.thresholds = thresholds
	}
}

// Server routes license checks through a fresh controller per request.
type Server struct {
	lookup     state.Lookup
	metrics    *Metrics
	health     HealthSource
	logger     *log.Logger
	tracer     trace.Tracer
	thresholds license.Thresholds
	engine     *gin.Engine
	newID      func() string
}

// New builds the gin engine and its routes.
func New(lookup state.Lookup, options ...Option) (*Server, error) {
	if lookup == nil {
		return nil, errors.New("lookup is required")
	}
	s := &Server{
		lookup:     lookup,
		logger:     log.New(io.Discard),
		thresholds: license.DefaultThresholds(),
		newID:      func() string { return uuid.NewString() },
	}
	for _, option := range options {
		if option != nil {
			option(s)
		}
	}

	// Route and warning banners from debug mode would land on stdout.
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestID(), s.accessLog())
	engine.POST("/api/licenses/check", s.handleCheck)
	engine.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	s.engine = engine
	return s, nil
}

// Handler returns the HTTP handler for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.logger.Info("serving license checks", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func (s *Server) handleCheck(c *gin.Context) {
	var request CheckRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with company and reference"})
		return
	}

	options := []state.Option{state.WithLogger(s.logger.With(requestIDKey, c.GetString(requestIDKey)))}
	if s.tracer != nil {
		options = append(options, state.WithTracer(s.tracer))
	}
	controller, err := state.NewController(s.lookup, options...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	view, err := controller.Check(c.Request.Context(), request.Company, request.Reference)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if view.Error != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": view.Error})
		return
	}

	s.metrics.RecordGroups(view.Groups)
	c.JSON(http.StatusOK, report.Build(view, report.Options{ShowExpired: true, Thresholds: s.thresholds}))
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unknown", "error": "health checks are not running"})
		return
	}
	last, ok := s.health.Last()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unknown", "error": "no probe has completed yet"})
		return
	}
	status := http.StatusOK
	if !last.Reachable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, last)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = s.newID()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Info(
			"request",
			requestIDKey, c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
}
