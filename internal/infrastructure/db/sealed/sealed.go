// Package sealed encrypts credential store values at rest.
//
// Each value is sealed with XChaCha20-Poly1305 under a key derived from an
// operator secret with HKDF-SHA256. The store key is bound as additional data,
// so a ciphertext copied to another key fails to open.
package sealed

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/ports"
)

const (
	valuePrefix = "v1:"
	hkdfInfo    = "clinic-session:credential-store:v1"
)

// ErrTampered is returned when a stored value cannot be opened with the configured secret.
var ErrTampered = errors.New("sealed value cannot be opened")

// Inner is the store being wrapped.
type Inner interface {
	ports.CredentialStore
	Ping(ctx context.Context) error
	Close() error
}

// CredentialStore seals values on Set and opens them on Get.
type CredentialStore struct {
	inner Inner
	aead  cipher.AEAD
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// New wraps inner, deriving the sealing key from secret.
func New(inner Inner, secret string) (*CredentialStore, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("sealed: empty secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("sealed: deriving key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealed: %w", err)
	}
	return &CredentialStore{inner: inner, aead: aead}, nil
}

func (s *CredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.open(key, raw)
	if err != nil {
		return "", false, fmt.Errorf("sealed get %s: %w: %w", key, domain.ErrStorageUnavailable, err)
	}
	return plain, true, nil
}

func (s *CredentialStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return fmt.Errorf("sealed set %s: %w: %w", key, domain.ErrStorageUnavailable, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *CredentialStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *CredentialStore) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

func (s *CredentialStore) Close() error { return s.inner.Close() }

func (s *CredentialStore) seal(key, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return valuePrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

func (s *CredentialStore) open(key, raw string) (string, error) {
	encoded, ok := strings.CutPrefix(raw, valuePrefix)
	if !ok {
		return "", ErrTampered
	}
	data, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil || len(data) < s.aead.NonceSize() {
		return "", ErrTampered
	}
	n := s.aead.NonceSize()
	plain, err := s.aead.Open(nil, data[:n], data[n:], []byte(key))
	if err != nil {
		return "", ErrTampered
	}
	return string(plain), nil
}
