package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusmarket/session-engine/internal/api/metrics"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

const defaultHeartbeatInterval = 600 * time.Second

// offlineWriteTimeout bounds the best-effort offline write performed during
// teardown, so Stop cannot hang on a dead backend.
const offlineWriteTimeout = 3 * time.Second

// Heartbeat periodically writes an online+timestamp presence signal while a
// session is authenticated. Start writes once immediately; Stop cancels the
// ticker deterministically and then performs a single best-effort offline
// write. No online write can land after Stop returns.
type Heartbeat struct {
	presence ports.PresenceStore
	interval time.Duration
	log      zerolog.Logger

	// mu serializes whole Start/Stop sequences, including the wait for the
	// previous loop to exit, so two concurrent starts can never overwrite
	// each other's channels and leak an unreachable loop.
	mu      sync.Mutex
	subject string
	stop    chan struct{}
	done    chan struct{}
}

// NewHeartbeat returns a Heartbeat writing to presence every interval.
// If interval <= 0, defaultHeartbeatInterval is used.
func NewHeartbeat(presence ports.PresenceStore, interval time.Duration, log zerolog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &Heartbeat{presence: presence, interval: interval, log: log}
}

// Start begins the heartbeat loop for the given subject. A running loop for
// a previous subject is stopped first, including its offline write.
func (h *Heartbeat) Start(subject string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopLocked()

	h.subject = subject
	h.stop = make(chan struct{})
	h.done = make(chan struct{})

	go h.run(subject, h.stop, h.done)
}

// Stop cancels the ticker, waits for the loop to exit, and then marks the
// subject offline exactly once. Safe to call multiple times and before Start.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

// stopLocked is Stop's body; the caller holds mu.
func (h *Heartbeat) stopLocked() {
	if h.stop == nil {
		return
	}
	stop, done := h.stop, h.done
	subject := h.subject
	h.stop, h.done = nil, nil
	h.subject = ""

	// The ticker must be torn down before the offline write begins, so a
	// scheduled tick cannot race the offline flag.
	close(stop)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), offlineWriteTimeout)
	defer cancel()
	if err := h.presence.MarkOffline(ctx, subject, time.Now().UTC()); err != nil {
		h.log.Warn().Err(err).Str("subject", subject).Msg("offline presence write failed")
		return
	}
	metrics.HeartbeatWritesTotal.WithLabelValues("offline").Inc()
}

func (h *Heartbeat) run(subject string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	h.write(subject)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.write(subject)
		}
	}
}

func (h *Heartbeat) write(subject string) {
	ctx, cancel := context.WithTimeout(context.Background(), offlineWriteTimeout)
	defer cancel()
	if err := h.presence.MarkOnline(ctx, subject, time.Now().UTC()); err != nil {
		h.log.Warn().Err(err).Str("subject", subject).Msg("online presence write failed")
		return
	}
	metrics.HeartbeatWritesTotal.WithLabelValues("online").Inc()
}
