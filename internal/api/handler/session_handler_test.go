package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/service"
)

type stubSession struct {
	mu    sync.Mutex
	snap  domain.Snapshot
	subs  []func(domain.Snapshot)
	unsub int

	loginFn   func(ctx context.Context, email, password string) (domain.Snapshot, error)
	profileFn func(ctx context.Context, u domain.ProfileUpdate) (domain.Snapshot, error)
	lastLogin string
}

func (s *stubSession) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

func (s *stubSession) WaitReady(context.Context) error { return nil }

func (s *stubSession) Subscribe(fn func(domain.Snapshot)) func() {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.unsub++
		s.mu.Unlock()
	}
}

func (s *stubSession) publish(snap domain.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	subs := append([]func(domain.Snapshot){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (s *stubSession) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *stubSession) Login(ctx context.Context, email, password string) (domain.Snapshot, error) {
	s.lastLogin = "login:" + email
	return s.loginFn(ctx, email, password)
}

func (s *stubSession) ClientLogin(ctx context.Context, email, password string) (domain.Snapshot, error) {
	s.lastLogin = "client:" + email
	return s.loginFn(ctx, email, password)
}

func (s *stubSession) Logout(context.Context) (domain.Snapshot, error) {
	return domain.Snapshot{ActiveKind: domain.KindNone}, nil
}

func (s *stubSession) UpdateSystemUser(context.Context, domain.SystemUser) (domain.Snapshot, error) {
	return domain.Snapshot{}, errors.New("not used")
}

func (s *stubSession) UpdateClientOwner(context.Context, domain.ClientOwner) (domain.Snapshot, error) {
	return domain.Snapshot{}, errors.New("not used")
}

func (s *stubSession) UpdateProfile(ctx context.Context, u domain.ProfileUpdate) (domain.Snapshot, error) {
	return s.profileFn(ctx, u)
}

func (s *stubSession) HasAccess(allowed ...domain.Role) domain.AccessResult {
	return domain.HasAccess(s.Snapshot(), allowed...)
}

func vetSnapshot() domain.Snapshot {
	return domain.Snapshot{
		ActiveKind: domain.KindSystem,
		SystemUser: &domain.SystemUser{ID: "7", Name: "Dr. Rivera", Role: domain.RoleVet, Active: true},
	}
}

func newContext(svc *stubSession, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if svc != nil {
		req = req.WithContext(service.WithManager(req.Context(), svc))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestSessionHandler_Snapshot(t *testing.T) {
	svc := &stubSession{snap: vetSnapshot()}
	c, rec := newContext(svc, http.MethodGet, "/session", "")

	if err := NewSessionHandler(zerolog.Nop()).Snapshot(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got domain.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.ActiveKind != domain.KindSystem || got.SystemUser == nil || got.SystemUser.ID != "7" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestSessionHandler_WithoutSessionContract(t *testing.T) {
	c, _ := newContext(nil, http.MethodGet, "/session", "")

	err := NewSessionHandler(zerolog.Nop()).Snapshot(c)
	if code := httpCode(t, err); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}

func TestSessionHandler_Login(t *testing.T) {
	svc := &stubSession{
		loginFn: func(_ context.Context, email, password string) (domain.Snapshot, error) {
			if email != "rivera@clinic.test" || password != "pw" {
				t.Errorf("unexpected credentials %s/%s", email, password)
			}
			return vetSnapshot(), nil
		},
	}
	c, rec := newContext(svc, http.MethodPost, "/session/login", `{"email":"rivera@clinic.test","password":"pw"}`)

	if err := NewSessionHandler(zerolog.Nop()).Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastLogin != "login:rivera@clinic.test" {
		t.Fatalf("unexpected call %q", svc.lastLogin)
	}
	if !strings.Contains(rec.Body.String(), `"activeKind":"SYSTEM"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestSessionHandler_ClientLogin(t *testing.T) {
	svc := &stubSession{
		loginFn: func(context.Context, string, string) (domain.Snapshot, error) {
			return domain.Snapshot{ActiveKind: domain.KindClient, ClientOwner: &domain.ClientOwner{ID: "42"}}, nil
		},
	}
	c, rec := newContext(svc, http.MethodPost, "/session/client-login", `{"email":"ana@mail.test","password":"pw"}`)

	if err := NewSessionHandler(zerolog.Nop()).ClientLogin(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if svc.lastLogin != "client:ana@mail.test" {
		t.Fatalf("expected client login, got %q", svc.lastLogin)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSessionHandler_Login_ValidationErrors(t *testing.T) {
	bodies := map[string]string{
		"missing password": `{"email":"rivera@clinic.test"}`,
		"bad email":        `{"email":"rivera","password":"pw"}`,
		"malformed":        `{"email":`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			svc := &stubSession{loginFn: func(context.Context, string, string) (domain.Snapshot, error) {
				t.Fatalf("service must not be called")
				return domain.Snapshot{}, nil
			}}
			c, _ := newContext(svc, http.MethodPost, "/session/login", body)

			err := NewSessionHandler(zerolog.Nop()).Login(c)
			if code := httpCode(t, err); code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", code)
			}
		})
	}
}

func TestSessionHandler_Login_PropagatesLoginError(t *testing.T) {
	svc := &stubSession{loginFn: func(context.Context, string, string) (domain.Snapshot, error) {
		return domain.Snapshot{}, domain.NewLoginError(domain.ErrInvalidCredentials, "Credenciales inválidas")
	}}
	c, _ := newContext(svc, http.MethodPost, "/session/login", `{"email":"x@clinic.test","password":"pw"}`)

	err := NewSessionHandler(zerolog.Nop()).Login(c)
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestSessionHandler_UpdateProfile(t *testing.T) {
	svc := &stubSession{profileFn: func(_ context.Context, u domain.ProfileUpdate) (domain.Snapshot, error) {
		if u.Name == nil || *u.Name != "Dra. Rivera" || u.Password != nil {
			t.Errorf("unexpected update %+v", u)
		}
		return vetSnapshot(), nil
	}}
	c, rec := newContext(svc, http.MethodPut, "/session/profile", `{"name":"Dra. Rivera"}`)

	if err := NewSessionHandler(zerolog.Nop()).UpdateProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSessionHandler_UpdateProfile_ShortPassword(t *testing.T) {
	svc := &stubSession{}
	c, _ := newContext(svc, http.MethodPut, "/session/profile", `{"password":"short"}`)

	err := NewSessionHandler(zerolog.Nop()).UpdateProfile(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestSessionHandler_Access(t *testing.T) {
	svc := &stubSession{snap: vetSnapshot()}
	h := NewSessionHandler(zerolog.Nop())

	cases := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"?roles=ADMIN,VET", true},
		{"?roles=admin", false},
	}
	for _, tc := range cases {
		c, rec := newContext(svc, http.MethodGet, "/session/access"+tc.query, "")
		if err := h.Access(c); err != nil {
			t.Fatalf("%s: handler error: %v", tc.query, err)
		}
		var got accessResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if got.HasAccess != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.query, tc.want, got.HasAccess)
		}
		if got.User == nil {
			t.Fatalf("%s: expected user", tc.query)
		}
	}

	c, _ := newContext(svc, http.MethodGet, "/session/access?roles=JANITOR", "")
	if code := httpCode(t, h.Access(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", code)
	}
}

func TestSessionHandler_Events(t *testing.T) {
	svc := &stubSession{snap: domain.Snapshot{ActiveKind: domain.KindNone}}
	e := echo.New()
	h := NewSessionHandler(zerolog.Nop())
	e.GET("/session/events", h.Events, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(service.WithManager(req.Context(), svc)))
			return next(c)
		}
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/session/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	if !strings.Contains(first, `"activeKind":"NONE"`) {
		t.Fatalf("first event must be the current snapshot, got %q", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for svc.subscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	svc.publish(vetSnapshot())

	second := readEvent(t, reader)
	if !strings.Contains(second, `"activeKind":"SYSTEM"`) {
		t.Fatalf("expected SYSTEM update, got %q", second)
	}
}

// readEvent returns the data line of the next SSE event.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			return data
		}
	}
}
