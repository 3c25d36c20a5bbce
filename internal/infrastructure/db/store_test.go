package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetclinic/clinic-session/internal/infrastructure/db/bolt"
	"github.com/vetclinic/clinic-session/internal/infrastructure/db/memory"
	"github.com/vetclinic/clinic-session/internal/infrastructure/db/sealed"
	"github.com/vetclinic/clinic-session/internal/pkg/config"
)

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{Store: config.StoreConfig{Driver: "memory"}}
	b, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &memory.CredentialStore{}, b)

	cfg = &config.Config{Store: config.StoreConfig{Driver: "BBolt", Path: filepath.Join(t.TempDir(), "s.db")}}
	b, err = Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &bolt.CredentialStore{}, b)
	assert.NoError(t, b.Close())
}

func TestOpen_SealsWhenKeyConfigured(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "memory", EncryptionKey: "secret"}}
	b, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &sealed.CredentialStore{}, b)

	ctx := context.Background()
	require.NoError(t, b.Set(ctx, "k", "v"))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "etcd"}}
	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown driver")
}
