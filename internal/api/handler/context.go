package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vetclinic/clinic-session/internal/core/ports"
	"github.com/vetclinic/clinic-session/internal/core/service"
)

// sessionFrom extracts the session contract installed by the Session
// middleware. A missing contract means the route was mounted without it,
// which is reported as 503 rather than panicking.
func sessionFrom(c echo.Context) (ports.SessionService, error) {
	svc, err := service.FromContext(c.Request().Context())
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "session not initialized").SetInternal(err)
	}
	return svc, nil
}
