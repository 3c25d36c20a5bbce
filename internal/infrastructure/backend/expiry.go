package backend

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/ports"
)

// ExpiryAwareValidator answers false for JWTs whose exp claim has passed without
// asking the backend. Anything it cannot read is delegated unchanged.
type ExpiryAwareValidator struct {
	next   ports.SessionValidator
	parser *jwt.Parser
	now    func() time.Time
}

var _ ports.SessionValidator = (*ExpiryAwareValidator)(nil)

func NewExpiryAwareValidator(next ports.SessionValidator) *ExpiryAwareValidator {
	return &ExpiryAwareValidator{
		next:   next,
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

func (v *ExpiryAwareValidator) Validate(ctx context.Context, kind domain.Kind, token string) (bool, error) {
	if v.expired(token) {
		return false, nil
	}
	return v.next.Validate(ctx, kind, token)
}

// expired only inspects the claims; the signature is the backend's concern.
func (v *ExpiryAwareValidator) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(v.now())
}
