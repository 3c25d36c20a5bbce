package service

import (
	"context"

	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/ports"
)

type ctxKey struct{}

// WithManager returns a copy of ctx carrying the session contract.
func WithManager(ctx context.Context, svc ports.SessionService) context.Context {
	return context.WithValue(ctx, ctxKey{}, svc)
}

// FromContext returns the session contract established by WithManager.
// Using the contract outside that scope is a caller defect and yields ErrNotInitialized.
func FromContext(ctx context.Context) (ports.SessionService, error) {
	svc, ok := ctx.Value(ctxKey{}).(ports.SessionService)
	if !ok || svc == nil {
		return nil, domain.ErrNotInitialized
	}
	return svc, nil
}
