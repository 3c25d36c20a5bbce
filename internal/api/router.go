// Package api assembles the local HTTP surface of the session service.
//
//	@title			Clinic Session API
//	@version		1.0
//	@description	Local session service for the veterinary clinic front ends.
//	@BasePath		/
package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/vetclinic/clinic-session/docs"
	"github.com/vetclinic/clinic-session/internal/api/handler"
	"github.com/vetclinic/clinic-session/internal/api/middleware"
	"github.com/vetclinic/clinic-session/internal/core/ports"
	"github.com/vetclinic/clinic-session/internal/pkg/config"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(svc ports.SessionService, store handler.Pinger, cfg config.HTTPConfig, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.Session(svc))

	// --- Health probes ---
	healthHandler := handler.NewHealthHandler(store)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	// --- Session routes ---
	sessionHandler := handler.NewSessionHandler(log)
	loginLimit := middleware.LoginRateLimit(cfg.LoginRatePerMinute, cfg.LoginRateBurst)

	s := e.Group("/session")
	s.GET("", sessionHandler.Snapshot)
	s.POST("/login", sessionHandler.Login, loginLimit)
	s.POST("/client-login", sessionHandler.ClientLogin, loginLimit)
	s.POST("/logout", sessionHandler.Logout)
	s.PUT("/profile", sessionHandler.UpdateProfile)
	s.GET("/access", sessionHandler.Access)
	s.GET("/staff", sessionHandler.Staff, middleware.RequireRoles())
	s.GET("/events", sessionHandler.Events)

	// --- Ops ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
