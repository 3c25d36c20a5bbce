package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/vetclinic/clinic-session/internal/api/metrics"
)

// LoginRateLimit throttles login attempts with a single token bucket shared
// by every caller; the service is single-user, so there is no per-client key.
// perMinute <= 0 disables the limit.
func LoginRateLimit(perMinute, burst int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				metrics.LoginRateLimitedTotal.Inc()
				c.Response().Header().Set(echo.HeaderRetryAfter, "60")
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many login attempts"})
			}
			return next(c)
		}
	}
}
