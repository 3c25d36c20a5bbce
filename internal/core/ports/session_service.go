package ports

import (
	"context"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

// SessionService is the contract routing and UI code use to read and drive the session.
type SessionService interface {
	Snapshot() domain.Snapshot
	WaitReady(ctx context.Context) error
	Subscribe(fn func(domain.Snapshot)) (unsubscribe func())

	Login(ctx context.Context, email, password string) (domain.Snapshot, error)
	ClientLogin(ctx context.Context, email, password string) (domain.Snapshot, error)
	Logout(ctx context.Context) (domain.Snapshot, error)
	UpdateSystemUser(ctx context.Context, user domain.SystemUser) (domain.Snapshot, error)
	UpdateClientOwner(ctx context.Context, owner domain.ClientOwner) (domain.Snapshot, error)
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.Snapshot, error)

	HasAccess(allowed ...domain.Role) domain.AccessResult
}
