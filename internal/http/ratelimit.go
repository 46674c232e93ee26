package http

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/featureflow/internal/logging"
)

// limiterReset bounds the memory held by per-client limiters.
const limiterReset = time.Hour

// clientLimiter hands out one token bucket per client IP.
type clientLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
	limit       rate.Limit
	burst       int
	now         func() time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	return &clientLimiter{
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
		limit:       rate.Limit(rps),
		burst:       burst,
		now:         time.Now,
	}
}

// burstFor allows short spikes of twice the sustained rate.
func burstFor(rps float64) int {
	return int(math.Max(1, math.Ceil(rps*2)))
}

func (l *clientLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now().Sub(l.lastCleanup) > limiterReset {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = l.now()
	}

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter
}

// Middleware rejects requests over the limit with 429. /health is exempt.
func (l *clientLimiter) Middleware(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/health" {
				return next(c)
			}
			ip := c.RealIP()
			if !l.get(ip).Allow() {
				logger.Warn(c.Request().Context(), "rate limit exceeded", zap.String("ip", ip))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
