package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vetclinic/clinic-session/internal/api/metrics"
	"github.com/vetclinic/clinic-session/internal/core/domain"
	"github.com/vetclinic/clinic-session/internal/core/ports"
)

const queueBuffer = 32

// operation is one state-mutating call waiting for the worker.
type operation struct {
	name string
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

type subscriber struct {
	id uint64
	fn func(domain.Snapshot)
}

// Manager owns the session state. Every mutation runs on a single worker
// goroutine in submission order; reads are served from a lock-guarded copy.
type Manager struct {
	records   credentialRecords
	validator ports.SessionValidator
	gateway   ports.LoginGateway
	backend   ports.SessionBackend
	log       zerolog.Logger

	mu      sync.RWMutex
	state   domain.Snapshot
	token   string
	subs    []subscriber
	nextSub uint64

	ready     chan struct{}
	readyOnce sync.Once

	ops     chan *operation
	running atomic.Bool
	started atomic.Bool
	stopped chan struct{}

	// generation is bumped by every user-initiated submission; a restore
	// that observes a newer generation discards its result.
	generation    atomic.Uint64
	restoreMu     sync.Mutex
	cancelRestore context.CancelFunc

	notifies sync.WaitGroup
}

var _ ports.SessionService = (*Manager)(nil)

// NewManager wires the manager to its collaborators. backend may be nil, in
// which case logout skips the backend notification and UpdateProfile fails.
func NewManager(
	store ports.CredentialStore,
	validator ports.SessionValidator,
	gateway ports.LoginGateway,
	backend ports.SessionBackend,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		records:   credentialRecords{store: store},
		validator: validator,
		gateway:   gateway,
		backend:   backend,
		log:       log.With().Str("component", "session").Logger(),
		state:     domain.Snapshot{ActiveKind: domain.KindNone, IsLoading: true},
		ready:     make(chan struct{}),
		ops:       make(chan *operation, queueBuffer),
		stopped:   make(chan struct{}),
	}
}

// Start launches the worker and schedules the startup restore. It returns
// immediately; consumers observe IsLoading until the restore settles.
// The worker stops when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("start: %w: already started", domain.ErrInvalidState)
	}
	restoreCtx, cancel := context.WithCancel(ctx)
	m.restoreMu.Lock()
	m.cancelRestore = cancel
	m.restoreMu.Unlock()

	m.running.Store(true)
	go m.run(ctx, restoreCtx, m.generation.Load())
	return nil
}

// Done is closed once the worker has stopped and pending logout
// notifications have finished.
func (m *Manager) Done() <-chan struct{} {
	return m.stopped
}

func (m *Manager) run(ctx, restoreCtx context.Context, gen uint64) {
	defer close(m.stopped)
	defer m.notifies.Wait()
	defer m.running.Store(false)

	m.restore(restoreCtx, gen)

	for {
		select {
		case <-ctx.Done():
			m.drain()
			return
		case op := <-m.ops:
			if err := op.ctx.Err(); err != nil {
				op.done <- err
				continue
			}
			op.done <- op.run(op.ctx)
		}
	}
}

func (m *Manager) drain() {
	for {
		select {
		case op := <-m.ops:
			op.done <- domain.ErrNotInitialized
		default:
			return
		}
	}
}

// submit queues fn behind any in-flight operation and waits for its result.
// A restore still in flight is cancelled; it resolves to signed out and
// clears the record it was checking.
func (m *Manager) submit(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if !m.running.Load() {
		return domain.ErrNotInitialized
	}
	m.supersedeRestore()

	op := &operation{name: name, ctx: ctx, run: fn, done: make(chan error, 1)}
	select {
	case m.ops <- op:
	case <-m.stopped:
		return domain.ErrNotInitialized
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.done:
		return err
	case <-m.stopped:
		select {
		case err := <-op.done:
			return err
		default:
			return domain.ErrNotInitialized
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) supersedeRestore() {
	m.generation.Add(1)
	m.restoreMu.Lock()
	if m.cancelRestore != nil {
		m.cancelRestore()
	}
	m.restoreMu.Unlock()
}

func (m *Manager) superseded(gen uint64) bool {
	return m.generation.Load() != gen
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// WaitReady blocks until the startup restore has settled.
func (m *Manager) WaitReady(ctx context.Context) error {
	if !m.started.Load() {
		return domain.ErrNotInitialized
	}
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HasAccess evaluates allowed against the active system user.
func (m *Manager) HasAccess(allowed ...domain.Role) domain.AccessResult {
	return domain.HasAccess(m.Snapshot(), allowed...)
}

// Subscribe registers fn for every committed state change. Callbacks run
// synchronously on the worker, in subscription order, and must not call
// mutating operations of the manager themselves.
func (m *Manager) Subscribe(fn func(domain.Snapshot)) func() {
	m.mu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	metrics.Subscribers.Set(float64(len(m.subs)))
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					break
				}
			}
			metrics.Subscribers.Set(float64(len(m.subs)))
		})
	}
}

// ── Commits ───────────────────────────────────────────────────────────────────

// commit applies mutate, clears IsLoading and notifies subscribers with the new state.
func (m *Manager) commit(mutate func(s *domain.Snapshot)) domain.Snapshot {
	m.mu.Lock()
	mutate(&m.state)
	m.state.IsLoading = false
	switch {
	case m.state.SystemUser != nil:
		m.state.ActiveKind = domain.KindSystem
	case m.state.ClientOwner != nil:
		m.state.ActiveKind = domain.KindClient
	default:
		m.state.ActiveKind = domain.KindNone
	}
	snap := m.state.Clone()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	m.readyOnce.Do(func() { close(m.ready) })
	for _, k := range []domain.Kind{domain.KindSystem, domain.KindClient} {
		v := 0.0
		if snap.ActiveKind == k {
			v = 1
		}
		metrics.ActiveSession.WithLabelValues(string(k)).Set(v)
	}

	for _, s := range subs {
		s.fn(snap.Clone())
	}
	return snap
}

func (m *Manager) commitIdentity(token string, id domain.Identity) domain.Snapshot {
	return m.commit(func(s *domain.Snapshot) {
		m.token = token
		s.SystemUser = id.SystemUser.Clone()
		s.ClientOwner = id.ClientOwner.Clone()
	})
}

func (m *Manager) commitNone() domain.Snapshot {
	return m.commit(func(s *domain.Snapshot) {
		m.token = ""
		s.SystemUser = nil
		s.ClientOwner = nil
	})
}

// active returns the kind and token of the current identity. Only the worker
// mutates them, so reading under the read lock is enough.
func (m *Manager) active() (domain.Kind, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ActiveKind, m.token
}

// ── Restore ───────────────────────────────────────────────────────────────────

func (m *Manager) restore(ctx context.Context, gen uint64) {
	defer func() {
		m.restoreMu.Lock()
		if m.cancelRestore != nil {
			m.cancelRestore()
			m.cancelRestore = nil
		}
		m.restoreMu.Unlock()
	}()

	outcome := m.restoreSession(ctx, gen)
	metrics.RestoresTotal.WithLabelValues(outcome).Inc()
	m.log.Debug().Str("outcome", outcome).Msg("session restore finished")
}

func (m *Manager) restoreSession(ctx context.Context, gen uint64) string {
	// settle commits the outcome and clears IsLoading. A superseded restore
	// stays signed out and drops the marked record so the store agrees.
	settle := func(outcome string, kind domain.Kind, token string, id *domain.Identity) string {
		if m.superseded(gen) {
			if kind != domain.KindNone {
				m.purge(context.WithoutCancel(ctx), kind)
			}
			m.commit(func(*domain.Snapshot) {})
			return "superseded"
		}
		if id != nil {
			m.commitIdentity(token, *id)
		} else {
			m.commitNone()
		}
		return outcome
	}

	kind, marked, err := m.records.activeKind(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("reading stored session failed")
		return settle("storage_error", domain.KindNone, "", nil)
	}
	if !marked {
		return settle("empty", domain.KindNone, "", nil)
	}
	if kind == domain.KindNone {
		m.log.Warn().Msg("stored session marker unreadable, discarded")
		if err := m.records.dropMarker(context.WithoutCancel(ctx)); err != nil {
			m.log.Error().Err(err).Msg("clearing stored session failed")
		}
		return settle("corrupt_marker", domain.KindNone, "", nil)
	}

	token, id, ok, err := m.records.load(ctx, kind)
	if err != nil {
		m.log.Error().Err(err).Str("kind", string(kind)).Msg("reading stored session failed")
		return settle("storage_error", domain.KindNone, "", nil)
	}
	if !ok {
		m.purge(context.WithoutCancel(ctx), kind)
		m.log.Warn().Str("kind", string(kind)).Msg("stored session incomplete, discarded")
		return settle("incomplete", domain.KindNone, "", nil)
	}

	valid, err := m.validator.Validate(ctx, kind, token)
	if m.superseded(gen) {
		return settle("superseded", kind, "", nil)
	}
	switch {
	case err != nil:
		metrics.ValidationsTotal.WithLabelValues("error").Inc()
		m.log.Warn().Err(err).Str("kind", string(kind)).Msg("session validation failed, signing out")
		m.purge(context.WithoutCancel(ctx), kind)
		return settle("validation_error", kind, "", nil)
	case !valid:
		metrics.ValidationsTotal.WithLabelValues("invalid").Inc()
		m.log.Info().Str("kind", string(kind)).Msg("session expired")
		m.purge(context.WithoutCancel(ctx), kind)
		return settle("expired", kind, "", nil)
	}

	metrics.ValidationsTotal.WithLabelValues("valid").Inc()
	m.log.Info().Str("kind", string(kind)).Msg("session restored")
	return settle("restored", kind, token, &id)
}

func (m *Manager) purge(ctx context.Context, kind domain.Kind) {
	if err := m.records.clear(ctx, kind); err != nil {
		m.log.Error().Err(err).Str("kind", string(kind)).Msg("clearing stored session failed")
	}
}

// ── Login / logout ────────────────────────────────────────────────────────────

// Login resolves email/password to whichever identity kind the backend decides.
// On failure the state is untouched and the error carries a displayable message.
func (m *Manager) Login(ctx context.Context, email, password string) (domain.Snapshot, error) {
	return m.login(ctx, "login", func(ctx context.Context) (domain.LoginResult, error) {
		return m.gateway.Login(ctx, email, password)
	})
}

// ClientLogin is the client-portal login; it always yields a CLIENT session.
func (m *Manager) ClientLogin(ctx context.Context, email, password string) (domain.Snapshot, error) {
	return m.login(ctx, "client_login", func(ctx context.Context) (domain.LoginResult, error) {
		res, err := m.gateway.ClientLogin(ctx, email, password)
		if err == nil && res.Kind != domain.KindClient {
			err = domain.NewLoginError(fmt.Errorf("%w: client login resolved to %s", domain.ErrTransportFailure, res.Kind), "")
		}
		return res, err
	})
}

func (m *Manager) login(ctx context.Context, name string, call func(context.Context) (domain.LoginResult, error)) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.submit(ctx, name, func(ctx context.Context) error {
		res, err := call(ctx)
		if err == nil && !res.Consistent() {
			err = domain.NewLoginError(fmt.Errorf("%w: inconsistent login reply", domain.ErrTransportFailure), "")
		}
		if err != nil {
			metrics.LoginsTotal.WithLabelValues(string(domain.KindNone), loginResult(err)).Inc()
			m.log.Info().Err(err).Str("op", name).Msg("login rejected")
			return err
		}

		if err := m.records.persist(ctx, res); err != nil {
			metrics.LoginsTotal.WithLabelValues(string(res.Kind), "storage_error").Inc()
			m.log.Error().Err(err).Str("op", name).Msg("persisting session failed")
			return err
		}
		snap = m.commitIdentity(res.Token, res.Identity)
		metrics.LoginsTotal.WithLabelValues(string(res.Kind), "success").Inc()
		m.log.Info().Str("op", name).Str("kind", string(res.Kind)).Msg("signed in")
		return nil
	})
	if err != nil {
		return m.Snapshot(), err
	}
	return snap, nil
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrTransportFailure):
		return "transport_failure"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_error"
	default:
		return "error"
	}
}

// Logout clears both kinds from the store and commits the signed-out state.
// The backend is told in the background; its failures are only logged.
// A store failure is returned, but the in-memory state is signed out regardless.
func (m *Manager) Logout(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.submit(ctx, "logout", func(ctx context.Context) error {
		kind, token := m.active()
		if kind != domain.KindNone && m.backend != nil {
			m.notifies.Add(1)
			go m.notifyLogout(context.WithoutCancel(ctx), kind, token)
		}

		storeErr := m.records.clearAll(ctx)
		if storeErr != nil {
			m.log.Error().Err(storeErr).Msg("clearing stored session failed")
		}
		snap = m.commitNone()
		metrics.LogoutsTotal.WithLabelValues(string(kind)).Inc()
		m.log.Info().Str("kind", string(kind)).Msg("signed out")
		return storeErr
	})
	if err != nil {
		return m.Snapshot(), err
	}
	return snap, nil
}

func (m *Manager) notifyLogout(ctx context.Context, kind domain.Kind, token string) {
	defer m.notifies.Done()
	if err := m.backend.Logout(ctx, kind, token); err != nil {
		m.log.Warn().Err(err).Str("kind", string(kind)).Msg("backend logout notification failed")
	}
}

// ── Profile ───────────────────────────────────────────────────────────────────

// UpdateSystemUser replaces the active system user's payload. It fails with
// ErrInvalidState unless a system user is signed in.
func (m *Manager) UpdateSystemUser(ctx context.Context, user domain.SystemUser) (domain.Snapshot, error) {
	return m.replaceIdentity(ctx, domain.Identity{Kind: domain.KindSystem, SystemUser: &user})
}

// UpdateClientOwner replaces the active client owner's payload. It fails with
// ErrInvalidState unless a client owner is signed in.
func (m *Manager) UpdateClientOwner(ctx context.Context, owner domain.ClientOwner) (domain.Snapshot, error) {
	return m.replaceIdentity(ctx, domain.Identity{Kind: domain.KindClient, ClientOwner: &owner})
}

func (m *Manager) replaceIdentity(ctx context.Context, id domain.Identity) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.submit(ctx, "update_identity", func(ctx context.Context) error {
		var err error
		snap, err = m.applyIdentity(ctx, id)
		return err
	})
	if err != nil {
		return m.Snapshot(), err
	}
	return snap, nil
}

// applyIdentity runs on the worker. The store is written first so a failure leaves both sides unchanged.
func (m *Manager) applyIdentity(ctx context.Context, id domain.Identity) (domain.Snapshot, error) {
	kind, token := m.active()
	if kind != id.Kind {
		return domain.Snapshot{}, fmt.Errorf("update %s identity with %s active: %w", id.Kind, kind, domain.ErrInvalidState)
	}
	if err := m.records.saveIdentity(ctx, id); err != nil {
		return domain.Snapshot{}, err
	}
	m.log.Debug().Str("kind", string(kind)).Msg("identity updated")
	return m.commitIdentity(token, id), nil
}

// UpdateProfile sends update to the backend for the active identity and
// applies the payload it returns.
func (m *Manager) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.submit(ctx, "update_profile", func(ctx context.Context) error {
		kind, token := m.active()
		if kind == domain.KindNone {
			return fmt.Errorf("update profile: %w: no active session", domain.ErrInvalidState)
		}
		if update.Empty() {
			snap = m.Snapshot()
			return nil
		}
		if m.backend == nil {
			return fmt.Errorf("update profile: %w: no backend configured", domain.ErrInvalidState)
		}
		id, err := m.backend.UpdateProfile(ctx, kind, token, update)
		if errors.Is(err, domain.ErrSessionExpired) {
			m.log.Info().Str("kind", string(kind)).Msg("session expired")
			m.purge(ctx, kind)
			snap = m.commitNone()
			return fmt.Errorf("update profile: %w", err)
		}
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		if id.Kind != kind || !id.Consistent() {
			return fmt.Errorf("update profile: %w: backend returned %s payload", domain.ErrTransportFailure, id.Kind)
		}
		snap, err = m.applyIdentity(ctx, id)
		return err
	})
	if err != nil {
		return m.Snapshot(), err
	}
	return snap, nil
}
