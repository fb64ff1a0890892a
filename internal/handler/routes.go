package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/netpulse/webclient/internal/util"
)

func SetupRoutes(router *gin.Engine, health *HealthHandler, slots *SlotHandler, metrics *util.Metrics, metricsPath string) {
	router.GET("/health", health.Check)

	if metrics != nil && metricsPath != "" {
		router.GET(metricsPath, gin.WrapH(metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/slots/:position", slots.Slot)
		v1.GET("/slots/:position/html", slots.SlotHTML)
		v1.POST("/articles/render", slots.RenderArticle)
		// Unauthenticated; the ingress must restrict this route to operators.
		v1.POST("/ads/invalidate", slots.Invalidate)
	}
}
