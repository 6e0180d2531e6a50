package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/campusmarket/session-engine/internal/api/metrics"
	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

// SessionManager owns the authenticated/unauthenticated lifecycle. It is the
// only writer of the cached Identity; every other component reads snapshots.
type SessionManager struct {
	provider  ports.AuthProvider
	resolver  *ProfileResolver
	heartbeat *Heartbeat
	log       zerolog.Logger

	mu           sync.Mutex
	phase        domain.Phase
	identity     *domain.Identity
	listeners    map[int]func(domain.PhaseChange)
	nextListener int
	pending      []domain.PhaseChange
	notifying    bool
	bootstrapped bool
	lastFailure  error
}

// NewSessionManager wires the manager to its collaborators. The manager
// starts in the Uninitialized phase; call Bootstrap once at startup.
func NewSessionManager(provider ports.AuthProvider, resolver *ProfileResolver, heartbeat *Heartbeat, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		provider:  provider,
		resolver:  resolver,
		heartbeat: heartbeat,
		log:       log,
		phase:     domain.PhaseUninitialized,
		listeners: make(map[int]func(domain.PhaseChange)),
	}
}

// Bootstrap restores any existing provider session and resolves the profile.
// It is idempotent: only the first call has any effect. It never fails hard;
// any failure resolves to Unauthenticated with the reason retrievable via
// LastFailure.
func (m *SessionManager) Bootstrap(ctx context.Context) {
	m.mu.Lock()
	if m.bootstrapped {
		m.mu.Unlock()
		return
	}
	m.bootstrapped = true
	m.mu.Unlock()

	m.transition(domain.PhaseInitializing)

	m.provider.OnAuthStateChange(m.onProviderChange)

	sess, err := m.provider.CurrentSession(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("session restore failed, starting unauthenticated")
		m.recordFailure(err)
		m.transition(domain.PhaseUnauthenticated)
		return
	}
	if sess == nil {
		m.transition(domain.PhaseUnauthenticated)
		return
	}

	identity := m.resolver.Resolve(ctx, sess.Claims)
	if identity == nil {
		m.log.Warn().Msg("restored session carried no identity claims")
		m.recordFailure(domain.ErrIdentityNotFound)
		m.transition(domain.PhaseUnauthenticated)
		return
	}

	m.setIdentity(identity)
	m.transition(domain.PhaseAuthenticated)
	m.heartbeat.Start(identity.ID)
}

// SignIn delegates credential verification to the auth provider. On failure
// the typed provider error is returned and the session stays
// Unauthenticated. On success the profile is resolved, the session becomes
// Authenticated, and the heartbeat starts.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	sess, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		metrics.SignInFailuresTotal.Inc()
		m.recordFailure(err)
		return nil, err
	}

	identity := m.resolver.Resolve(ctx, sess.Claims)
	if identity == nil {
		metrics.SignInFailuresTotal.Inc()
		m.recordFailure(domain.ErrIdentityNotFound)
		return nil, domain.ErrInvalidCredentials
	}

	m.setIdentity(identity)

	// A sign-in before Bootstrap is tolerated; walk through Initializing so
	// the phase machine stays legal.
	if m.Phase() == domain.PhaseUninitialized {
		m.transition(domain.PhaseInitializing)
	}
	m.transition(domain.PhaseAuthenticated)
	m.heartbeat.Start(identity.ID)

	return identity.Clone(), nil
}

// SignOut stops the heartbeat (which performs the single best-effort offline
// write), invalidates the provider session, and moves to Unauthenticated.
// The transition happens even when the provider call fails; the provider
// error is still returned so the caller can react. Idempotent: a second call
// produces no further offline write.
func (m *SessionManager) SignOut(ctx context.Context) error {
	m.heartbeat.Stop()

	err := m.provider.SignOut(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("provider sign-out failed")
	}

	m.mu.Lock()
	m.identity = nil
	m.mu.Unlock()
	m.transition(domain.PhaseUnauthenticated)

	return err
}

// OnChange registers a listener fired on every phase transition, in the
// order transitions occur. Listeners are never invoked re-entrantly:
// transitions raised while a listener runs are queued and delivered after it
// returns. The returned function unregisters the listener.
func (m *SessionManager) OnChange(fn func(domain.PhaseChange)) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Phase returns the current session phase.
func (m *SessionManager) Phase() domain.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Identity returns a snapshot of the cached identity, or nil when
// unauthenticated.
func (m *SessionManager) Identity() *domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity.Clone()
}

// LastFailure returns the most recent recorded failure reason, for
// observability. Bootstrap and resolution failures are recorded here instead
// of being raised.
func (m *SessionManager) LastFailure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFailure
}

// RefreshIdentity re-resolves the cached identity from the store. Used after
// the role-promotion write so the cached role catches up with the durable
// record.
func (m *SessionManager) RefreshIdentity(ctx context.Context) {
	current := m.Identity()
	if current == nil {
		return
	}

	fresh := m.resolver.Resolve(ctx, ports.Claims{
		Subject:     current.ID,
		Email:       current.Email,
		DisplayName: current.DisplayName,
	})
	if fresh == nil {
		return
	}
	m.setIdentity(fresh)
}

func (m *SessionManager) setIdentity(identity *domain.Identity) {
	m.mu.Lock()
	m.identity = identity.Clone()
	m.mu.Unlock()
}

func (m *SessionManager) recordFailure(err error) {
	m.mu.Lock()
	m.lastFailure = err
	m.mu.Unlock()
}

// onProviderChange reacts to provider-side invalidation (expired or revoked
// token) by tearing the session down.
func (m *SessionManager) onProviderChange(change ports.AuthChange) {
	if change.SignedIn {
		return
	}
	if m.Phase() != domain.PhaseAuthenticated {
		return
	}
	m.log.Info().Msg("provider session invalidated, signing out")
	m.heartbeat.Stop()
	m.mu.Lock()
	m.identity = nil
	m.mu.Unlock()
	m.transition(domain.PhaseUnauthenticated)
}

// transition moves the phase machine to next and delivers the change to
// listeners. Same-phase transitions are ignored (idempotent sign-out);
// illegal ones are logged and dropped. Deliveries are strictly ordered and
// never nested: if a listener triggers another transition, it is queued and
// drained after the current delivery completes.
func (m *SessionManager) transition(next domain.Phase) {
	m.mu.Lock()
	from := m.phase
	if from == next {
		m.mu.Unlock()
		return
	}
	if !from.CanTransitionTo(next) {
		m.mu.Unlock()
		m.log.Error().
			Str("from", string(from)).
			Str("to", string(next)).
			Msg("illegal session phase transition dropped")
		return
	}

	m.phase = next
	m.pending = append(m.pending, domain.PhaseChange{From: from, To: next})
	metrics.SessionTransitionsTotal.WithLabelValues(string(from), string(next)).Inc()

	if m.notifying {
		m.mu.Unlock()
		return
	}
	m.notifying = true

	for len(m.pending) > 0 {
		change := m.pending[0]
		m.pending = m.pending[1:]

		targets := make([]func(domain.PhaseChange), 0, len(m.listeners))
		for _, fn := range m.listeners {
			targets = append(targets, fn)
		}

		m.mu.Unlock()
		for _, fn := range targets {
			fn(change)
		}
		m.mu.Lock()
	}

	m.notifying = false
	m.mu.Unlock()
}
