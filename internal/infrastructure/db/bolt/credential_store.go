// Package bolt provides a BBolt-backed credential store: a single file that
// survives process restarts.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/ports"
)

var bucketName = []byte("credentials")

// CredentialStore keeps every key in one bucket.
type CredentialStore struct {
	db *bbolt.DB
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore returns a store backed by the given BBolt database.
func NewCredentialStore(db *bbolt.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Open opens (creating if needed) the BBolt file at path.
func Open(path string, options *bbolt.Options) (*CredentialStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewCredentialStore(db), nil
}

// Close closes the underlying BBolt database.
func (s *CredentialStore) Close() error {
	return s.db.Close()
}

func (s *CredentialStore) Ping(context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

func (s *CredentialStore) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if data := b.Get([]byte(key)); data != nil {
			value, found = string(data), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("bolt get %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	return value, found, nil
}

func (s *CredentialStore) Set(_ context.Context, key, value string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bolt set %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *CredentialStore) Remove(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("bolt remove %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	return nil
}
