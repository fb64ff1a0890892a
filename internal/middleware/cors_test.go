package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(config CORSConfig, called *bool) *gin.Engine {
	router := gin.New()
	router.Use(CORS(config))
	handle := func(c *gin.Context) {
		*called = true
		c.Status(http.StatusOK)
	}
	router.GET("/slot", handle)
	router.OPTIONS("/slot", handle)
	return router
}

func TestCORS_Preflight(t *testing.T) {
	var called bool
	router := corsRouter(CORSConfig{AllowOrigins: []string{"*"}}, &called)

	req := httptest.NewRequest(http.MethodOptions, "/slot", nil)
	req.Header.Set("Origin", "https://blog.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called)
	assert.Equal(t, "https://blog.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, defaultAllowMethods, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"no list allows all", nil, "https://a.example", "*"},
		{"wildcard echoes origin", []string{"*"}, "https://a.example", "https://a.example"},
		{"wildcard without origin", []string{"*"}, "", "*"},
		{"listed origin", []string{"https://a.example"}, "https://a.example", "https://a.example"},
		{"unlisted origin", []string{"https://a.example"}, "https://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			router := corsRouter(CORSConfig{AllowOrigins: tt.allowed, AllowCredentials: true}, &called)

			req := httptest.NewRequest(http.MethodGet, "/slot", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.True(t, called)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
