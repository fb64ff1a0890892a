package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/netpulse/webclient/internal/util"
)

func Recovery(logger *util.Logger, metrics *util.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("Panic recovered",
					"error", fmt.Sprint(err),
					"path", c.Request.URL.Path,
					"request_id", GetRequestID(c),
					"stack", string(debug.Stack()),
				)
				if metrics != nil {
					metrics.IncrementError("panic", c.FullPath())
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   util.ErrInternalServer.Message,
					"details": "An unexpected error occurred",
				})
			}
		}()

		c.Next()
	}
}
