package ports

import (
	"context"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

// LoginGateway exchanges credentials for a token and an identity. The backend decides the kind.
type LoginGateway interface {
	Login(ctx context.Context, email, password string) (domain.LoginResult, error)
	// ClientLogin is the client-portal entry point; it always resolves to a CLIENT identity.
	ClientLogin(ctx context.Context, email, password string) (domain.LoginResult, error)
}

// SessionBackend covers the authenticated calls the manager makes on behalf of the active identity.
type SessionBackend interface {
	Logout(ctx context.Context, kind domain.Kind, token string) error
	UpdateProfile(ctx context.Context, kind domain.Kind, token string, update domain.ProfileUpdate) (domain.Identity, error)
}
