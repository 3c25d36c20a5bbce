package ports

import "context"

// CredentialStore is the durable key/value store that survives process restarts.
// Removing a missing key is not an error. Failures are wrapped as domain.ErrStorageUnavailable.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
