package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/civic-connect/portal/internal/metrics"
	"github.com/civic-connect/portal/pkg/response"
)

// limiterPool hands out one token bucket per key.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// RateLimit limits each caller (user id, or client ip when anonymous) to rps requests per
// second with the given burst. rps <= 0 disables limiting.
func RateLimit(route string, rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	pool := &limiterPool{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id := UserID(c); id != uuid.Nil {
			key = id.String()
		}
		if !pool.get(key).Allow() {
			metrics.RateLimited.WithLabelValues(route).Inc()
			response.TooManyRequests(c, "too many requests")
			return
		}
		c.Next()
	}
}
