package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type usuarioPayload struct {
	ID     flexID `json:"id"`
	Nombre string `json:"nombre"`
	Email  string `json:"email"`
	Rol    string `json:"rol"`
	Activo *bool  `json:"activo"`
}

func (u *usuarioPayload) toDomain() *domain.SystemUser {
	active := true
	if u.Activo != nil {
		active = *u.Activo
	}
	return &domain.SystemUser{
		ID:     string(u.ID),
		Name:   u.Nombre,
		Email:  u.Email,
		Role:   parseRole(u.Rol),
		Active: active,
	}
}

// parseRole maps the backend's role spellings onto domain roles; unknown roles pass through upper-cased.
func parseRole(s string) domain.Role {
	switch r := strings.ToUpper(strings.TrimSpace(s)); r {
	case "VETERINARIO", "VETERINARIAN":
		return domain.RoleVet
	case "RECEPCION", "RECEPCIONISTA", "RECEPTIONIST":
		return domain.RoleReception
	case "ESTUDIANTE":
		return domain.RoleStudent
	case "ADMINISTRADOR":
		return domain.RoleAdmin
	default:
		return domain.Role(r)
	}
}

type propietarioPayload struct {
	ID        flexID `json:"id"`
	Nombre    string `json:"nombre"`
	Documento string `json:"documento"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono"`
	Direccion string `json:"direccion"`
	Activo    *bool  `json:"activo"`
}

func (p *propietarioPayload) toDomain() *domain.ClientOwner {
	o := &domain.ClientOwner{
		ID:       string(p.ID),
		Name:     p.Nombre,
		Document: p.Documento,
		Email:    p.Email,
		Phone:    p.Telefono,
		Address:  p.Direccion,
	}
	if p.Activo != nil {
		active := *p.Activo
		o.Active = &active
	}
	return o
}

type loginReply struct {
	Token       string              `json:"token"`
	Type        string              `json:"type"`
	UserType    string              `json:"userType"`
	Usuario     *usuarioPayload     `json:"usuario"`
	Propietario *propietarioPayload `json:"propietario"`
}

// kind resolves the principal kind from userType, falling back to the payload present.
func (r *loginReply) kind() domain.Kind {
	if k := domain.ParseKind(r.UserType); k != domain.KindNone {
		return k
	}
	switch {
	case r.Usuario != nil && r.Propietario == nil:
		return domain.KindSystem
	case r.Propietario != nil && r.Usuario == nil:
		return domain.KindClient
	}
	return domain.KindNone
}

// result converts the reply into a LoginResult. A non-empty want forces the kind.
func (r *loginReply) result(want domain.Kind) (domain.LoginResult, error) {
	kind := want
	if kind == domain.KindNone {
		kind = r.kind()
	}

	res := domain.LoginResult{Token: r.Token, Identity: domain.Identity{Kind: kind}}
	switch kind {
	case domain.KindSystem:
		if r.Usuario != nil {
			res.SystemUser = r.Usuario.toDomain()
		}
	case domain.KindClient:
		if r.Propietario != nil {
			res.ClientOwner = r.Propietario.toDomain()
		}
	}

	if !res.Consistent() {
		return domain.LoginResult{}, domain.NewLoginError(
			fmt.Errorf("%w: login reply kind %q does not match its payload", domain.ErrTransportFailure, kind),
			"",
		)
	}
	return res, nil
}

type profileRequest struct {
	Nombre    *string `json:"nombre,omitempty"`
	Email     *string `json:"email,omitempty"`
	Telefono  *string `json:"telefono,omitempty"`
	Direccion *string `json:"direccion,omitempty"`
	Password  *string `json:"password,omitempty"`
}

func newProfileRequest(u domain.ProfileUpdate) profileRequest {
	return profileRequest{
		Nombre:    u.Name,
		Email:     u.Email,
		Telefono:  u.Phone,
		Direccion: u.Address,
		Password:  u.Password,
	}
}
