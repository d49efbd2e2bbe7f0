package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
)

func newRateLimitTestRouter(cfg *config.Config, markHuman bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	rl := NewRateLimiterMiddleware(cfg)
	router.Use(func(c *gin.Context) {
		c.Set(ContextKeyIsHumanVerified, markHuman)
		c.Next()
	})
	router.Use(rl.Limit())
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return router
}

func TestRateLimiter_SoftLimitAsksForCaptcha(t *testing.T) {
	cfg := &config.Config{
		RateLimitSoftBucketSize: 2,
		RateLimitSoftRefillRate: 0,
		RateLimitHardBucketSize: 100,
		RateLimitHardRefillRate: 100,
	}
	router := newRateLimitTestRouter(cfg, false)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTeapot, w.Code, "exhausting the soft bucket should demand a captcha")
}

func TestRateLimiter_HumanSkipsSoftLimit(t *testing.T) {
	cfg := &config.Config{
		RateLimitSoftBucketSize: 1,
		RateLimitSoftRefillRate: 0,
		RateLimitHardBucketSize: 100,
		RateLimitHardRefillRate: 100,
	}
	router := newRateLimitTestRouter(cfg, true)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiter_HardLimitRefuses(t *testing.T) {
	cfg := &config.Config{
		RateLimitSoftBucketSize: 100,
		RateLimitSoftRefillRate: 100,
		RateLimitHardBucketSize: 3,
		RateLimitHardRefillRate: 0,
	}
	router := newRateLimitTestRouter(cfg, true)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
