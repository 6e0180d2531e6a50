package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusmarket/session-engine/internal/api/metrics"
	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

const (
	defaultStalenessWindow = 90 * time.Second
	defaultPollInterval    = 120 * time.Second
	eventBuffer            = 256
)

// refreshTimeout bounds each background re-fetch performed by the reducer,
// which outlives the caller's context.
const refreshTimeout = 5 * time.Second

// AggregatorConfig tunes the staleness detection and polling fallback.
type AggregatorConfig struct {
	// StalenessWindow is how long the feed may stay silent before the
	// aggregator assumes delivery is broken and re-fetches by polling.
	StalenessWindow time.Duration
	// PollInterval is the re-fetch cadence while the feed is stale. It is
	// deliberately longer than realtime delivery; polling is a fallback,
	// not a second source of truth.
	PollInterval time.Duration
}

// Aggregator folds realtime change events and poll ticks into the derived
// UI-facing counters. A single reducer goroutine consumes both input
// sources, so shared state is never touched from two activities at once.
// The aggregator is the only writer of DerivedCounters.
type Aggregator struct {
	feed     ports.ChangeFeed
	messages ports.MessageStore
	apps     ports.ApplicationStore
	presence ports.PresenceStore
	promoter ports.RolePromoter
	guard    ports.PromotionGuard
	sessions *SessionManager
	cfg      AggregatorConfig
	log      zerolog.Logger

	// lifecycle serializes whole Start/Stop sequences, so two concurrent
	// starts can never overwrite each other's handles.
	lifecycle sync.Mutex

	mu           sync.Mutex
	counters     domain.DerivedCounters
	application  *domain.SellerApplication
	listeners    map[int]func(domain.DerivedCounters)
	nextListener int
	subs         map[string]ports.Subscription
	subject      string
	events       chan domain.ChangeEvent
	stopCh       chan struct{}
	doneCh       chan struct{}
	lastEvent    time.Time
	running      bool
}

// NewAggregator wires the aggregator to its collaborators.
func NewAggregator(
	feed ports.ChangeFeed,
	messages ports.MessageStore,
	apps ports.ApplicationStore,
	presence ports.PresenceStore,
	promoter ports.RolePromoter,
	guard ports.PromotionGuard,
	sessions *SessionManager,
	cfg AggregatorConfig,
	log zerolog.Logger,
) *Aggregator {
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = defaultStalenessWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Aggregator{
		feed:      feed,
		messages:  messages,
		apps:      apps,
		presence:  presence,
		promoter:  promoter,
		guard:     guard,
		sessions:  sessions,
		cfg:       cfg,
		log:       log,
		listeners: make(map[int]func(domain.DerivedCounters)),
		subs:      make(map[string]ports.Subscription),
	}
}

// Start subscribes the identity's topics and launches the reducer. The
// given ctx bounds only the synchronous subscribe and initial re-fetch; the
// reducer itself runs until Stop, independent of the caller's lifetime.
// Calling Start again for the same identity is a no-op, so a remount never
// accumulates duplicate handles; starting for a different identity tears the
// previous subscriptions down first.
func (a *Aggregator) Start(ctx context.Context, identity *domain.Identity) error {
	if identity == nil {
		return domain.ErrIdentityNotFound
	}

	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if a.running && a.subject == identity.ID {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	a.stopLocked()

	events := make(chan domain.ChangeEvent, eventBuffer)
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	subs := make(map[string]ports.Subscription, 3)
	specs := []struct {
		topic  string
		filter ports.EventFilter
	}{
		{domain.TopicMessages, rowFieldEquals("recipient_id", identity.ID)},
		{domain.TopicApplications, rowFieldEquals("applicant_id", identity.ID)},
		{domain.TopicPresence, nil},
	}
	for _, spec := range specs {
		sub, err := a.feed.Subscribe(ctx, spec.topic, spec.filter, func(ev domain.ChangeEvent) {
			select {
			case events <- ev:
			case <-stopCh:
			}
		})
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return err
		}
		subs[spec.topic] = sub
	}

	a.mu.Lock()
	a.subs = subs
	a.subject = identity.ID
	a.events = events
	a.stopCh = stopCh
	a.doneCh = doneCh
	a.lastEvent = time.Now()
	a.running = true
	a.mu.Unlock()

	a.refreshAll(ctx, identity.ID)

	go a.run(identity.ID, events, stopCh, doneCh)
	return nil
}

// Stop disposes every subscription handle and stops the reducer. Idempotent;
// once it returns, no callback mutates aggregator state.
func (a *Aggregator) Stop() {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	a.stopLocked()
}

// stopLocked is Stop's body; the caller holds lifecycle.
func (a *Aggregator) stopLocked() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	subs := a.subs
	stopCh, doneCh := a.stopCh, a.doneCh
	a.subs = make(map[string]ports.Subscription)
	a.subject = ""
	a.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			a.log.Warn().Err(err).Str("topic", sub.Topic()).Msg("subscription close failed")
		}
	}

	close(stopCh)
	<-doneCh
}

// Counters returns an immutable snapshot of the derived state.
func (a *Aggregator) Counters() domain.DerivedCounters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters
}

// Application returns the latest observed seller application, or nil.
func (a *Aggregator) Application() *domain.SellerApplication {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.application == nil {
		return nil
	}
	clone := *a.application
	return &clone
}

// OnCounters registers a listener notified with a snapshot whenever the
// derived counters change. The returned function unregisters it.
func (a *Aggregator) OnCounters(fn func(domain.DerivedCounters)) func() {
	a.mu.Lock()
	id := a.nextListener
	a.nextListener++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// run is the single reducer: push events and poll ticks feed one loop. It
// exits only on Stop; each re-fetch gets its own bounded context since the
// loop outlives whichever request started it.
func (a *Aggregator) run(subject string, events <-chan domain.ChangeEvent, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case ev := <-events:
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			a.apply(ctx, subject, ev)
			cancel()
		case <-ticker.C:
			a.mu.Lock()
			stale := time.Since(a.lastEvent) > a.cfg.StalenessWindow
			a.mu.Unlock()
			if stale {
				metrics.PollFallbacksTotal.Inc()
				a.log.Debug().Str("subject", subject).Msg("change feed stale, polling aggregates")
				ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
				a.refreshAll(ctx, subject)
				cancel()
			}
		}
	}
}

func (a *Aggregator) apply(ctx context.Context, subject string, ev domain.ChangeEvent) {
	a.mu.Lock()
	a.lastEvent = time.Now()
	a.mu.Unlock()
	metrics.FeedEventsTotal.WithLabelValues(ev.Topic, string(ev.Type)).Inc()

	switch ev.Topic {
	case domain.TopicMessages:
		// Unread counts are always re-queried rather than patched, so a
		// missed or duplicated delivery cannot cause drift.
		a.refreshUnread(ctx, subject)
	case domain.TopicApplications:
		a.applyApplication(ctx, ev)
	case domain.TopicPresence:
		a.refreshOnline(ctx)
	default:
		a.log.Debug().Str("topic", ev.Topic).Msg("event for unknown topic ignored")
	}
}

// applyApplication applies the latest application payload directly: the
// record is single-row per applicant and idempotent to overwrite.
func (a *Aggregator) applyApplication(ctx context.Context, ev domain.ChangeEvent) {
	if ev.Type == domain.ChangeDeleted {
		a.update(func(c *domain.DerivedCounters) {
			c.HasPendingApplication = false
			c.ApplicationStatus = ""
		}, nil, true)
		return
	}

	var app domain.SellerApplication
	if err := json.Unmarshal(ev.New, &app); err != nil {
		a.log.Warn().Err(err).Msg("malformed application payload dropped")
		return
	}

	a.update(func(c *domain.DerivedCounters) {
		c.HasPendingApplication = app.Status == domain.ApplicationPending
		c.ApplicationStatus = app.Status
	}, &app, true)

	a.maybePromote(ctx, &app)
}

// maybePromote performs the one documented client-initiated durable write:
// when an approval is observed while the cached role is still the default,
// exactly one role-promotion write happens, fenced by the promotion guard so
// duplicate deliveries cannot double-write.
func (a *Aggregator) maybePromote(ctx context.Context, app *domain.SellerApplication) {
	if app.Status != domain.ApplicationApproved {
		return
	}
	current := a.sessions.Identity()
	if current == nil || current.Role != domain.DefaultRole || current.ID != app.ApplicantID {
		return
	}

	won, err := a.guard.Acquire(ctx, app.ID)
	if err != nil {
		a.log.Warn().Err(err).Str("application", app.ID).Msg("promotion guard unavailable, deferring to next delivery")
		return
	}
	if !won {
		return
	}

	if err := a.promoter.PromoteRole(ctx, current.ID, domain.RoleSeller); err != nil {
		a.log.Error().Err(err).Str("subject", current.ID).Msg("role promotion write failed")
		return
	}
	metrics.RolePromotionsTotal.Inc()
	a.log.Info().Str("subject", current.ID).Msg("role promoted after application approval")
	a.sessions.RefreshIdentity(ctx)
}

// refreshAll re-fetches every aggregate from its authoritative source.
func (a *Aggregator) refreshAll(ctx context.Context, subject string) {
	timer := time.Now()
	a.refreshUnread(ctx, subject)
	a.refreshOnline(ctx)
	a.refreshApplication(ctx, subject)
	metrics.CounterRefreshDuration.Observe(time.Since(timer).Seconds())
}

func (a *Aggregator) refreshUnread(ctx context.Context, subject string) {
	count, err := a.messages.CountUnread(ctx, subject)
	if err != nil {
		a.log.Warn().Err(err).Str("subject", subject).Msg("unread count query failed")
		return
	}
	a.update(func(c *domain.DerivedCounters) { c.UnreadMessages = count }, nil, false)
}

func (a *Aggregator) refreshOnline(ctx context.Context) {
	count, err := a.presence.CountOnline(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("online count query failed")
		return
	}
	a.update(func(c *domain.DerivedCounters) { c.OnlineUsers = count }, nil, false)
}

func (a *Aggregator) refreshApplication(ctx context.Context, subject string) {
	app, err := a.apps.FindByApplicant(ctx, subject)
	if err != nil {
		if !errors.Is(err, domain.ErrApplicationNotFound) {
			a.log.Warn().Err(err).Str("subject", subject).Msg("application query failed")
			return
		}
		a.update(func(c *domain.DerivedCounters) {
			c.HasPendingApplication = false
			c.ApplicationStatus = ""
		}, nil, true)
		return
	}
	a.update(func(c *domain.DerivedCounters) {
		c.HasPendingApplication = app.Status == domain.ApplicationPending
		c.ApplicationStatus = app.Status
	}, app, true)
	a.maybePromote(ctx, app)
}

// update applies a mutation to the counters and, when the snapshot actually
// changed, notifies listeners with a copy. setApp controls whether the
// cached application record is replaced as well.
func (a *Aggregator) update(mutate func(*domain.DerivedCounters), app *domain.SellerApplication, setApp bool) {
	a.mu.Lock()
	before := a.counters
	mutate(&a.counters)
	if setApp {
		a.application = app
	}
	changed := a.counters != before
	snapshot := a.counters
	targets := make([]func(domain.DerivedCounters), 0, len(a.listeners))
	for _, fn := range a.listeners {
		targets = append(targets, fn)
	}
	a.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range targets {
		fn(snapshot)
	}
}

// rowFieldEquals builds a filter matching events whose new row carries the
// given string field value. Malformed rows never match.
func rowFieldEquals(field, want string) ports.EventFilter {
	return func(ev domain.ChangeEvent) bool {
		payload := ev.New
		if len(payload) == 0 {
			payload = ev.Old
		}
		var row map[string]json.RawMessage
		if err := json.Unmarshal(payload, &row); err != nil {
			return false
		}
		var got string
		if err := json.Unmarshal(row[field], &got); err != nil {
			return false
		}
		return got == want
	}
}
