package backend

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

type countingValidator struct {
	calls int
	valid bool
}

func (v *countingValidator) Validate(context.Context, domain.Kind, string) (bool, error) {
	v.calls++
	return v.valid, nil
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-only-secret"))
	require.NoError(t, err)
	return s
}

func TestExpiryAwareValidator(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		token     string
		want      bool
		wantCalls int
	}{
		{"expired jwt", "", false, 0},
		{"live jwt", "", true, 1},
		{"jwt without exp", "", true, 1},
		{"opaque token", "9f1c2e-opaque", true, 1},
	}
	cases[0].token = signed(t, jwt.MapClaims{"sub": "7", "exp": now.Add(-time.Minute).Unix()})
	cases[1].token = signed(t, jwt.MapClaims{"sub": "7", "exp": now.Add(time.Hour).Unix()})
	cases[2].token = signed(t, jwt.MapClaims{"sub": "7"})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next := &countingValidator{valid: true}
			v := NewExpiryAwareValidator(next)
			v.now = func() time.Time { return now }

			got, err := v.Validate(context.Background(), domain.KindSystem, tc.token)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantCalls, next.calls)
		})
	}
}
