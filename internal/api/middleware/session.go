package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/vetclinic/clinic-session/internal/core/ports"
	"github.com/vetclinic/clinic-session/internal/core/service"
)

// Session installs svc in every request context so handlers can reach it with service.FromContext.
func Session(svc ports.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(service.WithManager(req.Context(), svc)))
			return next(c)
		}
	}
}
