package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// ── identity store ────────────────────────────────────────────────────────────

type stubIdentityStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.Identity
	findErr  error
	creates  int
}

func newStubIdentityStore() *stubIdentityStore {
	return &stubIdentityStore{profiles: make(map[string]*domain.Identity)}
}

func (s *stubIdentityStore) FindByKey(_ context.Context, id string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	identity, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return identity.Clone(), nil
}

func (s *stubIdentityStore) CreateIfAbsent(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if existing, ok := s.profiles[identity.ID]; ok {
		return existing.Clone(), nil
	}
	s.profiles[identity.ID] = identity.Clone()
	return identity.Clone(), nil
}

func (s *stubIdentityStore) UpdateByKey(_ context.Context, id string, upd ports.IdentityUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.profiles[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	if upd.DisplayName != nil {
		identity.DisplayName = *upd.DisplayName
	}
	if upd.Role != nil {
		identity.Role = *upd.Role
	}
	if upd.IsActive != nil {
		identity.IsActive = *upd.IsActive
	}
	return nil
}

func (s *stubIdentityStore) put(identity *domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[identity.ID] = identity.Clone()
}

func (s *stubIdentityStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// ── auth provider ─────────────────────────────────────────────────────────────

type stubProvider struct {
	mu        sync.Mutex
	session   *ports.AuthSession
	signInErr error
	restoreErr error
	signOuts  int
	listeners []func(ports.AuthChange)
}

func (p *stubProvider) SignInWithPassword(_ context.Context, email, _ string) (*ports.AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	p.session = &ports.AuthSession{
		Token:  "token-" + email,
		Claims: ports.Claims{Subject: "user-" + email, Email: email},
	}
	return p.session, nil
}

func (p *stubProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	p.session = nil
	return nil
}

func (p *stubProvider) CurrentSession(_ context.Context) (*ports.AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.restoreErr != nil {
		return nil, p.restoreErr
	}
	return p.session, nil
}

func (p *stubProvider) OnAuthStateChange(fn func(ports.AuthChange)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
	return func() {}
}

func (p *stubProvider) invalidate() {
	p.mu.Lock()
	p.session = nil
	targets := append([]func(ports.AuthChange){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range targets {
		fn(ports.AuthChange{SignedIn: false})
	}
}

func (p *stubProvider) signOutCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

// ── presence store ────────────────────────────────────────────────────────────

type stubPresence struct {
	mu       sync.Mutex
	online   int
	offline  int
	count    int64
	countErr error
}

func (s *stubPresence) MarkOnline(_ context.Context, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online++
	return nil
}

func (s *stubPresence) MarkOffline(_ context.Context, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline++
	return nil
}

func (s *stubPresence) CountOnline(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.countErr
}

func (s *stubPresence) writes() (online, offline int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online, s.offline
}

// ── change feed ───────────────────────────────────────────────────────────────

type stubSubscription struct {
	topic  string
	filter ports.EventFilter
	fn     func(domain.ChangeEvent)

	mu     sync.Mutex
	closed bool
}

func (s *stubSubscription) Topic() string { return s.topic }

func (s *stubSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSubscription) deliver(ev domain.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.filter != nil && !s.filter(ev) {
		return
	}
	s.fn(ev)
}

type stubFeed struct {
	mu   sync.Mutex
	subs []*stubSubscription
}

func (f *stubFeed) Subscribe(_ context.Context, topic string, filter ports.EventFilter, fn func(domain.ChangeEvent)) (ports.Subscription, error) {
	sub := &stubSubscription{topic: topic, filter: filter, fn: fn}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

func (f *stubFeed) emit(ev domain.ChangeEvent) {
	f.mu.Lock()
	subs := append([]*stubSubscription{}, f.subs...)
	f.mu.Unlock()
	for _, sub := range subs {
		if sub.topic == ev.Topic {
			sub.deliver(ev)
		}
	}
}

func (f *stubFeed) subscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *stubFeed) openSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	open := 0
	for _, sub := range f.subs {
		sub.mu.Lock()
		if !sub.closed {
			open++
		}
		sub.mu.Unlock()
	}
	return open
}

// ── aggregate sources ─────────────────────────────────────────────────────────

type stubMessages struct {
	mu     sync.Mutex
	unread int64
}

func (s *stubMessages) CountUnread(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread, nil
}

func (s *stubMessages) set(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = n
}

type stubApplications struct {
	mu      sync.Mutex
	app     *domain.SellerApplication
	findErr error
}

func (s *stubApplications) FindByApplicant(_ context.Context, _ string) (*domain.SellerApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.app == nil {
		return nil, domain.ErrApplicationNotFound
	}
	clone := *s.app
	return &clone, nil
}

func (s *stubApplications) set(app *domain.SellerApplication, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app = app
	s.findErr = err
}

// ── promotion collaborators ───────────────────────────────────────────────────

type stubGuard struct {
	mu       sync.Mutex
	acquired map[string]bool
}

func (g *stubGuard) Acquire(_ context.Context, applicationID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.acquired == nil {
		g.acquired = make(map[string]bool)
	}
	if g.acquired[applicationID] {
		return false, nil
	}
	g.acquired[applicationID] = true
	return true, nil
}

type stubPromoter struct {
	mu         sync.Mutex
	promotions []string
	store      *stubIdentityStore
}

func (p *stubPromoter) PromoteRole(ctx context.Context, id string, role domain.Role) error {
	p.mu.Lock()
	p.promotions = append(p.promotions, id)
	p.mu.Unlock()
	if p.store != nil {
		return p.store.UpdateByKey(ctx, id, ports.IdentityUpdate{Role: &role})
	}
	return nil
}

func (p *stubPromoter) promotionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.promotions)
}

// ── override RPC ──────────────────────────────────────────────────────────────

type stubOverrideRPC struct {
	mu         sync.Mutex
	secret     string
	roleWrites int
}

func (r *stubOverrideRPC) Verify(_ context.Context, secret string) error {
	if secret != r.secret {
		return domain.ErrOverrideRejected
	}
	return nil
}

func (r *stubOverrideRPC) PromoteRole(ctx context.Context, secret, _ string, _ domain.Role) error {
	if err := r.Verify(ctx, secret); err != nil {
		return err
	}
	r.mu.Lock()
	r.roleWrites++
	r.mu.Unlock()
	return nil
}

func (r *stubOverrideRPC) SetActive(ctx context.Context, secret, _ string, _ bool) error {
	return r.Verify(ctx, secret)
}

func (r *stubOverrideRPC) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roleWrites
}
