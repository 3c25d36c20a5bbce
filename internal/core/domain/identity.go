package domain

import "strings"

// Kind identifies which principal a session belongs to.
type Kind string

const (
	KindNone   Kind = "NONE"
	KindSystem Kind = "SYSTEM"
	KindClient Kind = "CLIENT"
)

// ParseKind maps backend and storage spellings to a Kind. Unknown values map to KindNone.
func ParseKind(s string) Kind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SYSTEM", "USUARIO", "USER":
		return KindSystem
	case "CLIENT", "CLIENTE", "PROPIETARIO", "OWNER":
		return KindClient
	default:
		return KindNone
	}
}

// Role is the staff role of a system user.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleVet       Role = "VET"
	RoleReception Role = "RECEPTION"
	RoleStudent   Role = "STUDENT"
)

// Valid reports whether r is one of the known staff roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVet, RoleReception, RoleStudent:
		return true
	}
	return false
}

// ParseRoles splits a comma separated list into roles, skipping blanks.
func ParseRoles(s string) []Role {
	var roles []Role
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		roles = append(roles, Role(part))
	}
	return roles
}

// SystemUser is a clinic staff member.
type SystemUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`
}

// Clone returns a copy of u, or nil.
func (u *SystemUser) Clone() *SystemUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// ClientOwner is a pet owner using the client portal.
type ClientOwner struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Active   *bool  `json:"active,omitempty"`
}

// Clone returns a deep copy of o, or nil.
func (o *ClientOwner) Clone() *ClientOwner {
	if o == nil {
		return nil
	}
	c := *o
	if o.Active != nil {
		active := *o.Active
		c.Active = &active
	}
	return &c
}
