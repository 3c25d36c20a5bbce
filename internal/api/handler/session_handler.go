package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

const (
	eventBuffer       = 16
	heartbeatInterval = 15 * time.Second
)

type SessionHandler struct {
	log       zerolog.Logger
	heartbeat time.Duration
}

func NewSessionHandler(log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		log:       log.With().Str("component", "session_handler").Logger(),
		heartbeat: heartbeatInterval,
	}
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type accessResponse struct {
	HasAccess bool               `json:"hasAccess"`
	User      *domain.SystemUser `json:"user"`
}

// Snapshot returns the current session state.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  domain.Snapshot
// @Router       /session [get]
func (h *SessionHandler) Snapshot(c echo.Context) error {
	svc, err := sessionFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svc.Snapshot())
}

// Login signs in with staff or owner credentials.
//
// @Summary      Login
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  domain.Snapshot
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	return h.login(c, false)
}

// ClientLogin signs in through the client portal.
//
// @Summary      Client portal login
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  domain.Snapshot
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /session/client-login [post]
func (h *SessionHandler) ClientLogin(c echo.Context) error {
	return h.login(c, true)
}

func (h *SessionHandler) login(c echo.Context, client bool) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	svc, err := sessionFrom(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var snap domain.Snapshot
	if client {
		snap, err = svc.ClientLogin(ctx, req.Email, req.Password)
	} else {
		snap, err = svc.Login(ctx, req.Email, req.Password)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// Logout signs out whichever identity is active.
//
// @Summary      Logout
// @Tags         session
// @Produce      json
// @Success      200  {object}  domain.Snapshot
// @Failure      503  {object}  map[string]string
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	svc, err := sessionFrom(c)
	if err != nil {
		return err
	}
	snap, err := svc.Logout(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// UpdateProfile changes the signed-in principal's own profile.
//
// @Summary      Update own profile
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      domain.ProfileUpdate  true  "Fields to change"
// @Success      200   {object}  domain.Snapshot
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /session/profile [put]
func (h *SessionHandler) UpdateProfile(c echo.Context) error {
	var req domain.ProfileUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	svc, err := sessionFrom(c)
	if err != nil {
		return err
	}
	snap, err := svc.UpdateProfile(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// Access checks the active system user against a comma separated role list.
//
// @Summary      Role check
// @Tags         session
// @Produce      json
// @Param        roles  query     string  false  "Comma separated roles, e.g. ADMIN,VET"
// @Success      200    {object}  accessResponse
// @Failure      400    {object}  map[string]string
// @Router       /session/access [get]
func (h *SessionHandler) Access(c echo.Context) error {
	roles := domain.ParseRoles(c.QueryParam("roles"))
	for _, r := range roles {
		if !r.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown role %q", r))
		}
	}

	svc, err := sessionFrom(c)
	if err != nil {
		return err
	}
	res := svc.HasAccess(roles...)
	return c.JSON(http.StatusOK, accessResponse{HasAccess: res.HasAccess, User: res.User})
}

// Staff returns the signed-in staff member. Mounted behind RequireRoles.
//
// @Summary      Signed-in staff member
// @Tags         session
// @Produce      json
// @Success      200  {object}  domain.SystemUser
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /session/staff [get]
func (h *SessionHandler) Staff(c echo.Context) error {
	svc, err := sessionFrom(c)
	if err != nil {
		return err
	}
	snap := svc.Snapshot()
	if snap.SystemUser == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no staff session")
	}
	return c.JSON(http.StatusOK, snap.SystemUser)
}

// Events streams every committed session state as Server-Sent Events. The
// first event carries the state at subscription time.
//
// @Summary      Session change stream
// @Tags         session
// @Produce      text/event-stream
// @Success      200
// @Router       /session/events [get]
func (h *SessionHandler) Events(c echo.Context) error {
	svc, err := sessionFrom(c)
	if err != nil {
		return err
	}

	// Subscribe before taking the first snapshot so no commit falls in between.
	updates := make(chan domain.Snapshot, eventBuffer)
	unsubscribe := svc.Subscribe(func(s domain.Snapshot) {
		select {
		case updates <- s:
		default:
			h.log.Warn().Msg("event stream lagging, update dropped")
		}
	})
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, svc.Snapshot()); err != nil {
		return nil
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-updates:
			if err := writeEvent(res, s); err != nil {
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(res *echo.Response, s domain.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: session\ndata: %s\n\n", data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
