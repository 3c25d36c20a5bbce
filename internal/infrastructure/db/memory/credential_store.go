// Package memory provides a thread-safe in-memory credential store.
// Contents are lost when the process exits; it backs tests and STORE_DRIVER=memory.
package memory

import (
	"context"
	"sync"

	"github.com/vetclinic/clinic-session/internal/core/ports"
)

// CredentialStore is a map guarded by a RWMutex.
type CredentialStore struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{data: make(map[string]string)}
}

func (s *CredentialStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *CredentialStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *CredentialStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys returns the stored keys; handy for assertions.
func (s *CredentialStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

func (s *CredentialStore) Ping(context.Context) error { return nil }

func (s *CredentialStore) Close() error { return nil }
