// Package server exposes rendered risk maps over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"riskmap/internal/catalog"
	"riskmap/internal/classify"
	"riskmap/internal/overlay"
	"riskmap/internal/raster"
)

// Renderer builds a Map for a request.
type Renderer interface {
	Build(ctx context.Context, req overlay.Request) (*overlay.Map, error)
}

// Catalog resolves dates to render requests and reports data availability.
type Catalog interface {
	Request(date time.Time) overlay.Request
	CheckReady() error
}

// Server serves the map page, the overlay image and the operational endpoints.
type Server struct {
	httpServer *http.Server
	renderer   Renderer
	catalog    Catalog
	legend     []classify.LegendEntry
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the map, overlay, legend, health,
// readiness and metrics routes.
func NewServer(addr string, renderer Renderer, cat Catalog, legend []classify.LegendEntry, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		renderer: renderer,
		catalog:  cat,
		legend:   legend,
		logger:   logger,
	}

	router.Use(gin.Recovery(), s.requestLogger)

	// Example: GET /map?date=2022-07-19
	router.GET("/map", middlewareDate, s.handleMap)
	// Example: GET /overlay.png?date=2022-07-19
	router.GET("/overlay.png", middlewareDate, s.handleOverlay)
	router.GET("/legend", s.handleLegend)
	router.GET("/healthz", s.handleHealth)
	router.GET("/readyz", s.handleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

// middlewareDate parses the 'date' query parameter (YYYY-MM-DD), defaulting
// to today, and rejects dates outside the selectable range.
func middlewareDate(c *gin.Context) {
	raw := c.DefaultQuery("date", catalog.Today().Format(catalog.DateLayout))
	d, err := catalog.ParseDate(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid 'date' (expected YYYY-MM-DD)"})
		return
	}
	r := catalog.Selectable()
	if !r.Contains(d) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "date outside " + r.Min.Format(catalog.DateLayout) + ".." + r.Max.Format(catalog.DateLayout),
		})
		return
	}
	c.Set("date", d)
	c.Next()
}

func (s *Server) render(c *gin.Context) (*overlay.Map, bool) {
	d := c.MustGet("date").(time.Time)
	m, err := s.renderer.Build(c.Request.Context(), s.catalog.Request(d))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("render failed", "date", d.Format(catalog.DateLayout), "error", err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return nil, false
	}
	return m, true
}

// statusFor maps render errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, raster.ErrBandIndex):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleMap(c *gin.Context) {
	m, ok := s.render(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := m.WriteHTML(&buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handleOverlay(c *gin.Context) {
	m, ok := s.render(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := m.WritePNG(&buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Overlay-Bounds", formatBounds(m.Bounds))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleLegend(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"classes": s.legend})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleReady(c *gin.Context) {
	if err := s.catalog.CheckReady(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// formatBounds renders [[south,west],[north,east]].
func formatBounds(b overlay.LatLngBounds) string {
	return fmt.Sprintf("[[%g,%g],[%g,%g]]", b[0][0], b[0][1], b[1][0], b[1][1])
}
