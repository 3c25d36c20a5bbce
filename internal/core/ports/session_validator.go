package ports

import (
	"context"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

// SessionValidator asks the backend whether a stored token is still good.
// An invalid token yields (false, nil); an error means the question could not be answered.
type SessionValidator interface {
	Validate(ctx context.Context, kind domain.Kind, token string) (bool, error)
}
