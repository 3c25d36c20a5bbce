// Package db selects and opens the durable credential store.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vetclinic/clinic-session/internal/core/ports"
	"github.com/vetclinic/clinic-session/internal/infrastructure/db/bolt"
	"github.com/vetclinic/clinic-session/internal/infrastructure/db/memory"
	"github.com/vetclinic/clinic-session/internal/infrastructure/db/mongo"
	"github.com/vetclinic/clinic-session/internal/infrastructure/db/postgres"
	"github.com/vetclinic/clinic-session/internal/infrastructure/db/redis"
	"github.com/vetclinic/clinic-session/internal/infrastructure/db/sealed"
	"github.com/vetclinic/clinic-session/internal/pkg/config"
)

// Backend is a credential store the process owns: it can be health-checked and closed.
type Backend interface {
	ports.CredentialStore
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend named by cfg.Store.Driver and, when an encryption
// key is configured, wraps it so values are sealed at rest.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	driver := strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch driver {
	case "", "bolt", "bbolt":
		backend, err = bolt.Open(cfg.Store.Path, nil)
	case "memory":
		backend = memory.NewCredentialStore()
	case "redis":
		backend, err = redis.Connect(ctx, redis.Config{
			Addr:      cfg.Redis.Addr,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "mongo", "mongodb":
		backend, err = mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	case "postgres", "postgresql":
		backend, err = postgres.Connect(ctx, cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", driver, err)
	}

	if cfg.Store.EncryptionKey != "" {
		s, err := sealed.New(backend, cfg.Store.EncryptionKey)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		backend = s
	}

	log.Info().
		Str("driver", driver).
		Bool("sealed", cfg.Store.EncryptionKey != "").
		Msg("credential store opened")
	return backend, nil
}
