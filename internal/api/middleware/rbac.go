package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/service"
)

// RequireRoles admits requests only while a system user holding one of
// allowedRoles is signed in. No roles means any system user.
// Must be mounted after Session.
func RequireRoles(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			svc, err := service.FromContext(c.Request().Context())
			if err != nil {
				return err
			}
			res := svc.HasAccess(allowedRoles...)
			switch {
			case res.User == nil:
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "staff session required"})
			case !res.HasAccess:
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
