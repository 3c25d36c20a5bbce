package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/ports"
)

// Store key layout. The marker names the kind the manager trusts on restore;
// a record of the other kind may linger until the next login of that kind.
const (
	KeyActiveKind     = "session.active_kind"
	KeySystemToken    = "session.system.token"
	KeySystemIdentity = "session.system.identity"
	KeyClientToken    = "session.client.token"
	KeyClientIdentity = "session.client.identity"
)

type recordKeys struct {
	token    string
	identity string
}

func keysFor(kind domain.Kind) recordKeys {
	if kind == domain.KindClient {
		return recordKeys{token: KeyClientToken, identity: KeyClientIdentity}
	}
	return recordKeys{token: KeySystemToken, identity: KeySystemIdentity}
}

func otherKind(kind domain.Kind) domain.Kind {
	if kind == domain.KindClient {
		return domain.KindSystem
	}
	return domain.KindClient
}

// credentialRecords orders writes so that an interruption between any two of
// them leaves either the previous session or no session, never a mix.
type credentialRecords struct {
	store ports.CredentialStore
}

// activeKind reads the marker. marked reports whether the key exists at all, so
// a marker naming no known kind comes back as (KindNone, true).
func (c credentialRecords) activeKind(ctx context.Context) (kind domain.Kind, marked bool, err error) {
	v, ok, err := c.store.Get(ctx, KeyActiveKind)
	if err != nil || !ok {
		return domain.KindNone, false, err
	}
	return domain.ParseKind(v), true, nil
}

// load returns ok=false when the record is missing a part or cannot be decoded.
func (c credentialRecords) load(ctx context.Context, kind domain.Kind) (string, domain.Identity, bool, error) {
	keys := keysFor(kind)
	token, ok, err := c.store.Get(ctx, keys.token)
	if err != nil || !ok || token == "" {
		return "", domain.Identity{}, false, err
	}
	blob, ok, err := c.store.Get(ctx, keys.identity)
	if err != nil || !ok {
		return "", domain.Identity{}, false, err
	}
	id, err := decodeIdentity(kind, blob)
	if err != nil {
		return "", domain.Identity{}, false, nil
	}
	return token, id, true, nil
}

// persist writes a fresh login: marker off, new record, marker on, other kind evicted.
func (c credentialRecords) persist(ctx context.Context, res domain.LoginResult) error {
	blob, err := encodeIdentity(res.Identity)
	if err != nil {
		return err
	}
	keys := keysFor(res.Kind)
	if err := c.store.Remove(ctx, KeyActiveKind); err != nil {
		return fmt.Errorf("persist login: %w", err)
	}
	if err := c.store.Set(ctx, keys.identity, blob); err != nil {
		return fmt.Errorf("persist login: %w", err)
	}
	if err := c.store.Set(ctx, keys.token, res.Token); err != nil {
		return fmt.Errorf("persist login: %w", err)
	}
	if err := c.store.Set(ctx, KeyActiveKind, string(res.Kind)); err != nil {
		return fmt.Errorf("persist login: %w", err)
	}
	if err := c.removeRecord(ctx, otherKind(res.Kind)); err != nil {
		return fmt.Errorf("persist login: evict %s: %w", otherKind(res.Kind), err)
	}
	return nil
}

// clear drops the marker and the record of kind.
func (c credentialRecords) clear(ctx context.Context, kind domain.Kind) error {
	if err := c.store.Remove(ctx, KeyActiveKind); err != nil {
		return fmt.Errorf("clear %s: %w", kind, err)
	}
	if err := c.removeRecord(ctx, kind); err != nil {
		return fmt.Errorf("clear %s: %w", kind, err)
	}
	return nil
}

// dropMarker removes only the marker, leaving both records for the next login to replace.
func (c credentialRecords) dropMarker(ctx context.Context) error {
	if err := c.store.Remove(ctx, KeyActiveKind); err != nil {
		return fmt.Errorf("drop marker: %w", err)
	}
	return nil
}

// clearAll drops the marker and both kinds' records.
func (c credentialRecords) clearAll(ctx context.Context) error {
	if err := c.clear(ctx, domain.KindSystem); err != nil {
		return err
	}
	if err := c.removeRecord(ctx, domain.KindClient); err != nil {
		return fmt.Errorf("clear %s: %w", domain.KindClient, err)
	}
	return nil
}

func (c credentialRecords) saveIdentity(ctx context.Context, id domain.Identity) error {
	blob, err := encodeIdentity(id)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, keysFor(id.Kind).identity, blob); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (c credentialRecords) removeRecord(ctx context.Context, kind domain.Kind) error {
	keys := keysFor(kind)
	if err := c.store.Remove(ctx, keys.token); err != nil {
		return err
	}
	return c.store.Remove(ctx, keys.identity)
}

func encodeIdentity(id domain.Identity) (string, error) {
	var (
		b   []byte
		err error
	)
	switch id.Kind {
	case domain.KindSystem:
		b, err = json.Marshal(id.SystemUser)
	case domain.KindClient:
		b, err = json.Marshal(id.ClientOwner)
	default:
		return "", fmt.Errorf("encode identity: %w: kind %q", domain.ErrInvalidState, id.Kind)
	}
	if err != nil {
		return "", fmt.Errorf("encode identity: %w", err)
	}
	return string(b), nil
}

func decodeIdentity(kind domain.Kind, blob string) (domain.Identity, error) {
	switch kind {
	case domain.KindSystem:
		var u domain.SystemUser
		if err := json.Unmarshal([]byte(blob), &u); err != nil {
			return domain.Identity{}, err
		}
		return domain.Identity{Kind: kind, SystemUser: &u}, nil
	case domain.KindClient:
		var o domain.ClientOwner
		if err := json.Unmarshal([]byte(blob), &o); err != nil {
			return domain.Identity{}, err
		}
		return domain.Identity{Kind: kind, ClientOwner: &o}, nil
	}
	return domain.Identity{}, fmt.Errorf("decode identity: unknown kind %q", kind)
}
