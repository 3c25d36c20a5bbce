// Package backend talks to the clinic REST backend on behalf of the session core:
// credential exchange, token validation, logout notification and profile updates.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vetclinic/clinic-session/internal/api/metrics"
	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/ports"
)

const maxBodyBytes = 1 << 20

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// endpoints groups the paths of one identity kind.
type endpoints struct {
	login    string
	validate string
	logout   string
	me       string
}

var (
	systemEndpoints = endpoints{
		login:    "auth/login",
		validate: "auth/validate",
		logout:   "auth/logout",
		me:       "auth/me",
	}
	clientEndpoints = endpoints{
		login:    "public/clientes/auth/login",
		validate: "public/clientes/auth/validate",
		logout:   "public/clientes/auth/logout",
		me:       "public/clientes/auth/me",
	}
)

func endpointsFor(kind domain.Kind) endpoints {
	if kind == domain.KindClient {
		return clientEndpoints
	}
	return systemEndpoints
}

// Client implements the validator, login gateway and session backend ports over HTTP.
type Client struct {
	client    httpClient
	serverURL url.URL
	log       zerolog.Logger
}

var (
	_ ports.SessionValidator = (*Client)(nil)
	_ ports.LoginGateway     = (*Client)(nil)
	_ ports.SessionBackend   = (*Client)(nil)
)

func NewClient(client httpClient, serverURL url.URL, log zerolog.Logger) *Client {
	return &Client{
		client:    client,
		serverURL: serverURL,
		log:       log.With().Str("component", "backend").Logger(),
	}
}

// New builds a Client for rawURL using a plain http.Client with the given timeout.
func New(rawURL string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: URL %q must be absolute", rawURL)
	}
	return NewClient(&http.Client{Timeout: timeout}, *u, log), nil
}

// ── Validator ─────────────────────────────────────────────────────────────────

// Validate reports whether token is still accepted by the backend. 401 and 403
// answer false; anything other than a 2xx boolean reply is a transport failure.
func (c *Client) Validate(ctx context.Context, kind domain.Kind, token string) (bool, error) {
	u := c.serverURL.JoinPath(endpointsFor(kind).validate)
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, fmt.Errorf("validate: %w: %v", domain.ErrTransportFailure, err)
	}

	status, body, err := c.do(req, "validate")
	if err != nil {
		return false, err
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return false, nil
	case status/100 != 2:
		return false, fmt.Errorf("validate: %w: status %d", domain.ErrTransportFailure, status)
	}

	valid, err := decodeValidity(body)
	if err != nil {
		return false, fmt.Errorf("validate: %w: %v", domain.ErrTransportFailure, err)
	}
	return valid, nil
}

// decodeValidity accepts a bare JSON boolean or an object with a "valid" field.
func decodeValidity(body []byte) (bool, error) {
	var b bool
	if err := json.Unmarshal(body, &b); err == nil {
		return b, nil
	}
	var obj struct {
		Valid *bool `json:"valid"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return false, err
	}
	if obj.Valid == nil {
		return false, errors.New("validity missing from reply")
	}
	return *obj.Valid, nil
}

// ── Login gateway ─────────────────────────────────────────────────────────────

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges staff or owner credentials; the reply decides the kind.
func (c *Client) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	reply, err := c.postLogin(ctx, systemEndpoints.login, "login", email, password)
	if err != nil {
		return domain.LoginResult{}, err
	}
	return reply.result(domain.KindNone)
}

// ClientLogin is the client-portal login; it always resolves to CLIENT.
func (c *Client) ClientLogin(ctx context.Context, email, password string) (domain.LoginResult, error) {
	reply, err := c.postLogin(ctx, clientEndpoints.login, "client_login", email, password)
	if err != nil {
		return domain.LoginResult{}, err
	}
	return reply.result(domain.KindClient)
}

func (c *Client) postLogin(ctx context.Context, path, op, email, password string) (*loginReply, error) {
	payload, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, domain.NewLoginError(fmt.Errorf("%w: %v", domain.ErrTransportFailure, err), "")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL.JoinPath(path).String(), bytes.NewReader(payload))
	if err != nil {
		return nil, domain.NewLoginError(fmt.Errorf("%w: %v", domain.ErrTransportFailure, err), "")
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req, op)
	if err != nil {
		return nil, domain.NewLoginError(err, "")
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, domain.NewLoginError(domain.ErrInvalidCredentials, backendMessage(body))
	case status/100 != 2:
		return nil, domain.NewLoginError(
			fmt.Errorf("%w: status %d", domain.ErrTransportFailure, status),
			backendMessage(body),
		)
	}

	var reply loginReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, domain.NewLoginError(fmt.Errorf("%w: decode login reply: %v", domain.ErrTransportFailure, err), "")
	}
	return &reply, nil
}

// ── Session backend ───────────────────────────────────────────────────────────

// Logout tells the backend the token is no longer in use.
func (c *Client) Logout(ctx context.Context, kind domain.Kind, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL.JoinPath(endpointsFor(kind).logout).String(), nil)
	if err != nil {
		return fmt.Errorf("logout: %w: %v", domain.ErrTransportFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	status, _, err := c.do(req, "logout")
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("logout: %w: status %d", domain.ErrTransportFailure, status)
	}
	return nil
}

// UpdateProfile changes the signed-in principal's own profile and returns the stored payload.
func (c *Client) UpdateProfile(ctx context.Context, kind domain.Kind, token string, update domain.ProfileUpdate) (domain.Identity, error) {
	payload, err := json.Marshal(newProfileRequest(update))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("update profile: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL.JoinPath(endpointsFor(kind).me).String(), bytes.NewReader(payload))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("update profile: %w: %v", domain.ErrTransportFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	status, body, err := c.do(req, "update_profile")
	if err != nil {
		return domain.Identity{}, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return domain.Identity{}, domain.ErrSessionExpired
	case status/100 != 2:
		return domain.Identity{}, fmt.Errorf("update profile: %w: status %d: %s", domain.ErrTransportFailure, status, backendMessage(body))
	}

	switch kind {
	case domain.KindSystem:
		var u usuarioPayload
		if err := json.Unmarshal(body, &u); err != nil {
			return domain.Identity{}, fmt.Errorf("update profile: %w: %v", domain.ErrTransportFailure, err)
		}
		return domain.Identity{Kind: kind, SystemUser: u.toDomain()}, nil
	case domain.KindClient:
		var p propietarioPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return domain.Identity{}, fmt.Errorf("update profile: %w: %v", domain.ErrTransportFailure, err)
		}
		return domain.Identity{Kind: kind, ClientOwner: p.toDomain()}, nil
	}
	return domain.Identity{}, fmt.Errorf("update profile: %w: kind %s", domain.ErrInvalidState, kind)
}

// ── Transport ─────────────────────────────────────────────────────────────────

// do sends req and returns the status and body. Only failures to obtain a
// response are errors; every HTTP status is handed back to the caller.
func (c *Client) do(req *http.Request, op string) (int, []byte, error) {
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.BackendRequestDuration.WithLabelValues(op, "error").Observe(time.Since(start).Seconds())
		c.log.Debug().Err(err).Str("op", op).Str("request_id", requestID).Msg("backend request failed")
		return 0, nil, fmt.Errorf("%s: %w: %v", op, domain.ErrTransportFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.BackendRequestDuration.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w: reading body: %v", op, domain.ErrTransportFailure, err)
	}

	c.log.Debug().
		Str("op", op).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")
	return resp.StatusCode, body, nil
}

// backendMessage extracts a human-readable message from an error body.
func backendMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Mensaje string `json:"mensaje"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	switch {
	case e.Message != "":
		return e.Message
	case e.Mensaje != "":
		return e.Mensaje
	default:
		return e.Error
	}
}
