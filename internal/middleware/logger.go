package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netpulse/webclient/internal/util"
)

type LoggingMiddleware struct {
	logger *util.Logger
}

func NewLoggingMiddleware(logger *util.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Middleware logs one line per completed request. Run it after RequestID.
func (lm *LoggingMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status_code", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"request_id", GetRequestID(c),
			"response_size", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		if c.Writer.Status() >= 500 {
			lm.logger.Errorw("HTTP request completed with error", fields...)
		} else if c.Writer.Status() >= 400 {
			lm.logger.Warnw("HTTP request rejected", fields...)
		} else {
			lm.logger.Infow("HTTP request completed", fields...)
		}
	}
}
