// Package ops serves the liveness, readiness and metrics endpoints.
package ops

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/stockroom-bot/internal/health"
	"github.com/Proton-105/stockroom-bot/internal/middleware"
)

const (
	PathHealth  = "/healthz"
	PathReady   = "/readyz"
	PathMetrics = "/metrics"
)

// Readiness reports whether the bot's dependencies are reachable.
type Readiness interface {
	Check(ctx context.Context) health.Report
}

// NewRouter builds the ops HTTP handler.
func NewRouter(ready Readiness, log *slog.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	started := time.Now()
	r.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "stockroom-bot",
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	})

	r.GET(PathReady, func(c *gin.Context) {
		if ready == nil {
			c.JSON(http.StatusOK, health.Report{Healthy: true, Components: map[string]string{}})
			return
		}
		report := ready.Check(c.Request.Context())
		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})

	r.GET(PathMetrics, gin.WrapH(promhttp.Handler()))

	return r
}
