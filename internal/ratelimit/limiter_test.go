package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, Burst: 5, IdleEviction: time.Minute})
	defer l.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d should be allowed", i)
	}
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
}

func TestClientsAreIndependent(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, Burst: 1, IdleEviction: time.Minute})
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l := NewLimiter(Config{RequestsPerMinute: 60, Burst: 1, IdleEviction: time.Minute})
	defer l.Stop()

	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	first := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ping", nil)
	r.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "rate limit exceeded")
}
