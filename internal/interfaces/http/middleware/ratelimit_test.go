package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestRateLimiter(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("allows the burst then blocks", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute, 3)
		defer limiter.Stop()

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("client"), "request %d", i+1)
		}
		assert.False(t, limiter.Allow("client"))
	})

	t.Run("separate buckets per client", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute, 1)
		defer limiter.Stop()

		assert.True(t, limiter.Allow("a"))
		assert.False(t, limiter.Allow("a"))
		assert.True(t, limiter.Allow("b"))
	})

	t.Run("refills over time", func(t *testing.T) {
		limiter := NewRateLimiter(10, 100*time.Millisecond, 1)
		defer limiter.Stop()

		assert.True(t, limiter.Allow("c"))
		assert.False(t, limiter.Allow("c"))
		assert.Eventually(t, func() bool { return limiter.Allow("c") }, time.Second, 5*time.Millisecond)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute, 1)
		limiter.Stop()
		limiter.Stop()
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute, 2)
	defer limiter.Stop()

	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		codes = append(codes, w.Code)
		if i == 0 {
			assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		}
		if w.Code == http.StatusTooManyRequests {
			assert.Contains(t, w.Body.String(), "ERR_RATE_LIMITED")
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
