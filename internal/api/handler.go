package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"inventory-intel/internal/models"
	"inventory-intel/internal/report"
	"inventory-intel/internal/service"
	"inventory-intel/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// EngineRunner is the part of service.Runner the HTTP API drives.
type EngineRunner interface {
	RunClassification(ctx context.Context) (*models.RunStats, error)
	RunVelocity(ctx context.Context) (*models.RunStats, error)
	RunClearance(ctx context.Context, maxItems int, mode string) (*models.ClearanceBatch, error)
	RunAlerts(ctx context.Context) (*service.AlertRunResult, error)
	RunFull(ctx context.Context) (*service.FullRunResult, error)
	PreviewAlerts(ctx context.Context) (*service.AlertRunResult, error)
	LatestClearance(ctx context.Context) (*models.ClearanceBatch, error)
}

// AlertHistory reads persisted alerts.
type AlertHistory interface {
	ListAlerts(ctx context.Context, limit int) ([]models.CashAlert, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	runner  EngineRunner
	history AlertHistory
	checks  map[string]HealthChecker
}

// NewHandler creates a new HTTP handler. checks are probed by /ready.
func NewHandler(runner EngineRunner, history AlertHistory, checks map[string]HealthChecker) *Handler {
	return &Handler{
		runner:  runner,
		history: history,
		checks:  checks,
	}
}

// SetupRoutes sets up HTTP routes. An empty allowedOrigins allows any origin.
func (h *Handler) SetupRoutes(router *gin.Engine, allowedOrigins []string) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(corsMiddleware(allowedOrigins))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		runs := v1.Group("/runs")
		runs.POST("/classification", h.runClassification)
		runs.POST("/velocity", h.runVelocity)
		runs.POST("/alerts", h.runAlerts)
		runs.POST("/full", h.runFull)

		v1.POST("/clearance", h.runClearance)
		v1.GET("/clearance/latest", h.latestClearance)
		v1.GET("/clearance/latest/export", h.exportLatestClearance)

		v1.GET("/alerts", h.listAlerts)
		v1.GET("/alerts/summary", h.alertSummary)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failures := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not ready",
			"failures": failures,
			"time":     time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) runClassification(c *gin.Context) {
	stats, err := h.runner.RunClassification(c.Request.Context())
	if err != nil {
		writeRunError(c, "Classification run failed", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) runVelocity(c *gin.Context) {
	stats, err := h.runner.RunVelocity(c.Request.Context())
	if err != nil {
		writeRunError(c, "Velocity run failed", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) runAlerts(c *gin.Context) {
	result, err := h.runner.RunAlerts(c.Request.Context())
	if err != nil {
		writeRunError(c, "Alert run failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) runFull(c *gin.Context) {
	result, err := h.runner.RunFull(c.Request.Context())
	if err != nil {
		writeRunError(c, "Full run failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type clearanceQuery struct {
	MaxItems int    `form:"max_items" binding:"omitempty,min=1,max=500"`
	Mode     string `form:"mode" binding:"omitempty,oneof=emergency aggressive conservative"`
}

// runClearance handles clearance batch generation
func (h *Handler) runClearance(c *gin.Context) {
	var q clearanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}
	if q.MaxItems == 0 {
		q.MaxItems = 50
	}

	batch, err := h.runner.RunClearance(c.Request.Context(), q.MaxItems, q.Mode)
	if err != nil {
		writeRunError(c, "Clearance run failed", err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *Handler) latestClearance(c *gin.Context) {
	batch, err := h.runner.LatestClearance(c.Request.Context())
	if err != nil {
		writeRunError(c, "Failed to load clearance batch", err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// exportLatestClearance serves the latest batch as an xlsx workbook
func (h *Handler) exportLatestClearance(c *gin.Context) {
	batch, err := h.runner.LatestClearance(c.Request.Context())
	if err != nil {
		writeRunError(c, "Failed to load clearance batch", err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=clearance-%s.xlsx", batch.ID))
	if err := report.WriteClearance(c.Writer, batch); err != nil {
		util.GetLogger().Error("Failed to write clearance workbook", zap.String("batch_id", batch.ID), zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}

// listAlerts handles the persisted alert history
func (h *Handler) listAlerts(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "limit must be between 1 and 500",
		})
		return
	}

	alerts, err := h.history.ListAlerts(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list alerts",
			"details": err.Error(),
		})
		return
	}
	if alerts == nil {
		alerts = []models.CashAlert{}
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// alertSummary generates alerts on the fly without persisting them
func (h *Handler) alertSummary(c *gin.Context) {
	result, err := h.runner.PreviewAlerts(c.Request.Context())
	if err != nil {
		writeRunError(c, "Failed to build summary", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func writeRunError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidMode), errors.Is(err, service.ErrUnknownEngine):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	cfg.AddAllowMethods("GET", "POST", "OPTIONS")
	cfg.AddExposeHeaders("Content-Disposition")
	return cors.New(cfg)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
