package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler maps domain errors to status codes and renders {"error": "<message>"}.
// Unexpected errors are logged and answered with a generic 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Login failures carry their own user-facing text.
	var le *domain.LoginError
	if errors.As(err, &le) {
		switch {
		case errors.Is(le, domain.ErrInvalidCredentials):
			return http.StatusUnauthorized, le.Error()
		case errors.Is(le, domain.ErrStorageUnavailable):
			return http.StatusServiceUnavailable, le.Error()
		default:
			return http.StatusBadGateway, le.Error()
		}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.DefaultLoginMessage
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized, "session expired"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "no matching active session"
	case errors.Is(err, domain.ErrTransportFailure):
		logFailure(log, c, err, "backend unreachable")
		return http.StatusBadGateway, "backend unavailable"
	case errors.Is(err, domain.ErrNotInitialized):
		return http.StatusServiceUnavailable, "session not initialized"
	case errors.Is(err, domain.ErrStorageUnavailable):
		logFailure(log, c, err, "credential store failure")
		return http.StatusServiceUnavailable, "credential storage unavailable"
	}

	logFailure(log, c, err, "unhandled error")
	return http.StatusInternalServerError, "internal server error"
}

func logFailure(log zerolog.Logger, c echo.Context, err error, msg string) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg(msg)
}
