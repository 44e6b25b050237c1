package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/quality"
	"ecommerce-etl/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker evaluates pipeline health on demand
type HealthChecker interface {
	Check(ctx context.Context) (*models.MonitoringReport, error)
}

// Handler contains HTTP handlers
type Handler struct {
	checker      HealthChecker
	processedDir string
	stagingDir   string
}

// NewHandler creates a new HTTP handler
func NewHandler(checker HealthChecker, processedDir, stagingDir string) *Handler {
	return &Handler{
		checker:      checker,
		processedDir: processedDir,
		stagingDir:   stagingDir,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/reports/pipeline", h.pipelineReport)
		v1.GET("/reports/quality", h.qualityReport)
	}
}

// healthCheck handles liveness requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck runs the monitor; a critical pipeline is not ready
func (h *Handler) readinessCheck(c *gin.Context) {
	report, err := h.checker.Check(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"details": err.Error(),
		})
		return
	}

	status := http.StatusOK
	if report.PipelineHealth == models.HealthCritical {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// pipelineReport serves the latest execution report
func (h *Handler) pipelineReport(c *gin.Context) {
	var report models.ExecutionReport
	serveReport(c, filepath.Join(h.processedDir, models.ExecutionReportFile), &report)
}

// qualityReport serves the latest quality report
func (h *Handler) qualityReport(c *gin.Context) {
	var report models.QualityReport
	serveReport(c, filepath.Join(h.stagingDir, quality.ReportFile), &report)
}

func serveReport(c *gin.Context, path string, v any) {
	if err := models.ReadJSON(path, v); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Report not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to read report",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, v)
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
