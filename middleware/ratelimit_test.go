package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimit(2, "slow down"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, hit("192.0.2.1:1234").Code)
	assert.Equal(t, http.StatusNoContent, hit("192.0.2.1:1234").Code)

	w := hit("192.0.2.1:5678")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"message":"slow down"}`, w.Body.String())

	assert.Equal(t, http.StatusNoContent, hit("198.51.100.7:1234").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimit(0, "never"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestIPLimiterRefillsAndSweeps(t *testing.T) {
	l := newIPLimiter(60)
	now := time.Now()
	for i := 0; i < 60; i++ {
		assert.True(t, l.allow("a", now))
	}
	assert.False(t, l.allow("a", now))
	assert.True(t, l.allow("a", now.Add(time.Second)))

	l.allow("b", now.Add(time.Second))
	l.allow("c", now.Add(clientIdle+2*time.Second))
	_, kept := l.clients["c"]
	assert.True(t, kept)
	assert.Len(t, l.clients, 1)
}
