package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netpulse/webclient/internal/util"
)

// HealthChecker is implemented by optional dependencies such as the Redis
// ad store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type CacheStatus interface {
	Loaded() bool
}

type HealthHandler struct {
	service string
	cache   CacheStatus
	store   HealthChecker
	metrics *util.Metrics
}

func NewHealthHandler(service string, cache CacheStatus, store HealthChecker, metrics *util.Metrics) *HealthHandler {
	return &HealthHandler{service: service, cache: cache, store: store, metrics: metrics}
}

// Check always answers 200: a dead Redis only degrades ad sharing.
func (h *HealthHandler) Check(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": h.service,
	}

	if h.cache != nil {
		body["ads_loaded"] = h.cache.Loaded()
	}
	if h.metrics != nil {
		body["uptime_seconds"] = int64(h.metrics.GetUptime().Seconds())
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.HealthCheck(ctx); err != nil {
			body["status"] = "degraded"
			body["redis"] = err.Error()
		} else {
			body["redis"] = "ok"
		}
	}

	c.JSON(http.StatusOK, body)
}
