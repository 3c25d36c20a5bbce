package postgres

import (
	"context"
	"os"
	"testing"
)

func newTestStore(t *testing.T) *CredentialStore {
	t.Helper()
	addr := os.Getenv("CLINIC_TEST_POSTGRES_DSN")
	if addr == "" {
		t.Skip("CLINIC_TEST_POSTGRES_DSN not set; skipping postgres tests")
	}

	ctx := context.Background()
	s, err := Connect(ctx, addr)
	if err != nil {
		t.Fatalf("could not connect: %v", err)
	}
	t.Cleanup(func() {
		for _, k := range []string{"session.system.token", "session.active_kind"} {
			_ = s.Remove(ctx, k)
		}
		_ = s.Close()
	})
	return s
}

func TestCredentialStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := s.Set(ctx, "session.system.token", "first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "session.system.token", "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, "session.system.token")
	if err != nil || !ok || v != "second" {
		t.Fatalf("expected second, got %q ok=%v err=%v", v, ok, err)
	}
	if err := s.Remove(ctx, "session.system.token"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, err := s.Get(ctx, "session.system.token"); err != nil || ok {
		t.Fatalf("expected key removed, ok=%v err=%v", ok, err)
	}
	if err := s.Remove(ctx, "session.active_kind"); err != nil {
		t.Fatalf("removing a missing key must succeed: %v", err)
	}
}
