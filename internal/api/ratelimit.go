package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/codyseavey/imgtools/internal/metrics"
)

// maxTrackedClients bounds the number of per-client limiters kept in memory.
const maxTrackedClients = 4096

// uploadLimiter throttles session creation per client IP. Each client gets a
// token bucket refilled at perMinute tokens per minute.
type uploadLimiter struct {
	limiters  *lru.Cache[string, *rate.Limiter]
	perMinute int
}

func newUploadLimiter(perMinute int) *uploadLimiter {
	limiters, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &uploadLimiter{limiters: limiters, perMinute: perMinute}
}

func (l *uploadLimiter) allow(client string) bool {
	if l.perMinute <= 0 {
		return true
	}
	limiter, ok := l.limiters.Get(client)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)
		// Another request from the same client may have raced us here
		if prev, found, _ := l.limiters.PeekOrAdd(client, limiter); found {
			limiter = prev
		}
	}
	return limiter.Allow()
}

// Middleware rejects requests over the client's budget with 429.
func (l *uploadLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			metrics.RateLimitedTotal.Inc()
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many uploads, try again later"})
			return
		}
		c.Next()
	}
}
