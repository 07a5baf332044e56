package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/model"
	"go.uber.org/zap"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db     pinger
	stats  *RateLimitStats
	logger *zap.Logger
}

func NewHealthHandler(db pinger, stats *RateLimitStats, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, stats: stats, logger: logger.Named("health")}
}

// Ping godoc
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} model.PingResponse
// @Router /ping [get]
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// Healthz godoc
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} model.HealthResponse
// @Failure 503 {object} model.HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("database ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, model.HealthResponse{Status: "degraded", Database: "down"})
		return
	}
	c.JSON(http.StatusOK, model.HealthResponse{Status: "ok", Database: "up"})
}

// Metrics godoc
// @Summary Rate limiter rejections per limiter
// @Tags health
// @Produce json
// @Success 200 {object} model.MetricsResponse
// @Router /metrics [get]
func (h *HealthHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, model.MetricsResponse{RateLimited: h.stats.Snapshot()})
}
