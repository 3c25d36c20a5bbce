package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/ports"
)

// fixedSession answers reads from a fixed snapshot; mutating calls are not used here.
type fixedSession struct {
	ports.SessionService
	snap domain.Snapshot
}

func (f fixedSession) Snapshot() domain.Snapshot { return f.snap.Clone() }

func (f fixedSession) HasAccess(allowed ...domain.Role) domain.AccessResult {
	return domain.HasAccess(f.snap, allowed...)
}

func staffSession(role domain.Role) fixedSession {
	return fixedSession{snap: domain.Snapshot{
		ActiveKind: domain.KindSystem,
		SystemUser: &domain.SystemUser{ID: "1", Name: "Staff", Role: role, Active: true},
	}}
}

func serveWith(t *testing.T, svc ports.SessionService, mw echo.MiddlewareFunc) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	called := false
	h := func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	}
	if svc != nil {
		e.GET("/", h, Session(svc), mw)
	} else {
		e.GET("/", h, mw)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec, called
}

func TestRequireRoles_Allows(t *testing.T) {
	rec, called := serveWith(t, staffSession(domain.RoleVet), RequireRoles(domain.RoleAdmin, domain.RoleVet))

	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRoles_AnyStaffWhenEmpty(t *testing.T) {
	rec, called := serveWith(t, staffSession(domain.RoleStudent), RequireRoles())

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected any system user to pass, got %d", rec.Code)
	}
}

func TestRequireRoles_Forbids(t *testing.T) {
	rec, called := serveWith(t, staffSession(domain.RoleReception), RequireRoles(domain.RoleAdmin))

	if called {
		t.Fatalf("next handler should not be called")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireRoles_ClientSession(t *testing.T) {
	svc := fixedSession{snap: domain.Snapshot{
		ActiveKind:  domain.KindClient,
		ClientOwner: &domain.ClientOwner{ID: "42", Name: "Ana"},
	}}
	rec, called := serveWith(t, svc, RequireRoles())

	if called {
		t.Fatalf("client sessions must not reach staff routes")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRoles_NoSessionContract(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequireRoles()(func(echo.Context) error {
		t.Fatalf("next handler should not be called")
		return nil
	})(c)
	if !errors.Is(err, domain.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
