// Package postgres implements the credential store on a PostgreSQL table.
//
// The table holds one row per store key; Set is an upsert so the manager's
// write ordering carries over unchanged.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/ports"
)

const pingTimeout = 2 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS session_credentials (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// CredentialStore is backed by a pgx connection pool.
type CredentialStore struct {
	pool *pgxpool.Pool
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore returns a store on the given pool.
func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// Connect creates a pool from dsn, checks connectivity and ensures the schema exists.
func Connect(ctx context.Context, dsn string) (*CredentialStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}
	s := NewCredentialStore(pool)
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ensuring schema: %w", err)
	}
	return s, nil
}

// EnsureSchema creates the credentials table if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

func (s *CredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM session_credentials WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres get %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	return value, true, nil
}

func (s *CredentialStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_credentials (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("postgres set %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *CredentialStore) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM session_credentials WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Ping verifies that the pool is healthy.
func (s *CredentialStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}
	return nil
}

func (s *CredentialStore) Close() error {
	s.pool.Close()
	return nil
}
