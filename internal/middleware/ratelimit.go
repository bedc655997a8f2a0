package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP
type IPRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rps       rate.Limit
	burst     int
	lastSweep time.Time
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors:  make(map[string]*visitor),
		rps:       rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimit answers 429 once a client IP exhausts its bucket. A non-positive rps disables it.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewIPRateLimiter(rps, burst)

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			abort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}
