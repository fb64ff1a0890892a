package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultAllowHeaders = "Content-Type, Accept, Origin, " + RequestIDHeader
	defaultAllowMethods = "GET, POST, OPTIONS"
)

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
}

// CORS lets pages on other origins fetch slot fragments. An empty origin
// list allows every origin.
func CORS(config CORSConfig) gin.HandlerFunc {
	allowHeaders := defaultAllowHeaders
	if len(config.AllowHeaders) > 0 {
		allowHeaders = strings.Join(config.AllowHeaders, ", ")
	}
	allowMethods := defaultAllowMethods
	if len(config.AllowMethods) > 0 {
		allowMethods = strings.Join(config.AllowMethods, ", ")
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		header := c.Writer.Header()

		if allowOrigin, ok := matchOrigin(config.AllowOrigins, origin); ok {
			header.Set("Access-Control-Allow-Origin", allowOrigin)
			if allowOrigin != "*" {
				header.Add("Vary", "Origin")
			}
		}
		if config.AllowCredentials {
			header.Set("Access-Control-Allow-Credentials", "true")
		}
		header.Set("Access-Control-Allow-Headers", allowHeaders)
		header.Set("Access-Control-Allow-Methods", allowMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func matchOrigin(allowed []string, origin string) (string, bool) {
	if len(allowed) == 0 {
		return "*", true
	}
	for _, candidate := range allowed {
		if candidate == "*" {
			if origin == "" {
				return "*", true
			}
			return origin, true
		}
		if candidate == origin {
			return origin, true
		}
	}
	return "", false
}
