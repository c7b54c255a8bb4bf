package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/smallbiznis/valora-identity/internal/metrics"
)

const msgTooManyRequests = "Too many requests. Please slow down."

// RateLimiter enforces per-client throttling keyed by client IP.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	now       func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter for the provided requests-per-minute budget.
// A non-positive budget disables limiting.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:     burst,
		idleAfter: 5 * time.Minute,
		now:       time.Now,
		clients:   make(map[string]*clientLimiter),
	}
}

// Handler returns the gin middleware enforcing throttling behaviour.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		now := r.now()
		reservation := r.limiterFor(c.ClientIP(), now).ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); !reservation.OK() || delay > 0 {
			reservation.CancelAt(now)
			metrics.RateLimitRejectedTotal.Inc()
			retryAfter := 1
			if reservation.OK() {
				retryAfter = int(math.Ceil(delay.Seconds()))
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": msgTooManyRequests})
			return
		}

		c.Next()
	}
}

func (r *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastSweep) > r.idleAfter {
		for k, entry := range r.clients {
			if now.Sub(entry.lastSeen) > r.idleAfter {
				delete(r.clients, k)
			}
		}
		r.lastSweep = now
	}

	entry, ok := r.clients[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}
