package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

// overrideSubject identifies the pseudo-identity substituted while the
// override channel is active.
const overrideSubject = "override"

// Override is the locally stored escape hatch for operational recovery.
// Activating it with a server-validated secret substitutes a privileged
// pseudo-identity without the normal credential flow; privileged writes then
// route through the secret-bearing RPC surface. Every failure is closed:
// a wrong or missing secret rejects, it never downgrades to an unprivileged
// write.
type Override struct {
	rpc ports.OverrideRPC
	log zerolog.Logger

	mu     sync.Mutex
	secret string
	active bool
}

// NewOverride returns an inactive override channel.
func NewOverride(rpc ports.OverrideRPC, log zerolog.Logger) *Override {
	return &Override{rpc: rpc, log: log}
}

// Activate verifies the secret server-side and, on success, arms the
// channel. Returns domain.ErrOverrideRejected when the secret does not
// match.
func (o *Override) Activate(ctx context.Context, secret string) error {
	if err := o.rpc.Verify(ctx, secret); err != nil {
		o.log.Warn().Err(err).Msg("override activation rejected")
		return domain.ErrOverrideRejected
	}

	o.mu.Lock()
	o.secret = secret
	o.active = true
	o.mu.Unlock()

	o.log.Info().Msg("override channel activated")
	return nil
}

// Deactivate disarms the channel and forgets the secret.
func (o *Override) Deactivate() {
	o.mu.Lock()
	o.secret = ""
	o.active = false
	o.mu.Unlock()
}

// Active reports whether the channel is armed.
func (o *Override) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Identity returns the privileged pseudo-identity while active, nil
// otherwise. It is ephemeral: nothing is persisted for it.
func (o *Override) Identity() *domain.Identity {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return nil
	}
	return &domain.Identity{
		ID:          overrideSubject,
		DisplayName: "Recovery Operator",
		Role:        domain.RoleSuperAdmin,
		IsActive:    true,
		Ephemeral:   true,
	}
}

// PromoteRole routes a privileged role write through the side channel.
func (o *Override) PromoteRole(ctx context.Context, id string, role domain.Role) error {
	secret, ok := o.currentSecret()
	if !ok {
		return domain.ErrOverrideRejected
	}
	if err := o.rpc.PromoteRole(ctx, secret, id, role); err != nil {
		o.log.Warn().Err(err).Str("subject", id).Msg("override role write rejected")
		return domain.ErrOverrideRejected
	}
	return nil
}

// SetActive routes a privileged activation toggle through the side channel.
func (o *Override) SetActive(ctx context.Context, id string, active bool) error {
	secret, ok := o.currentSecret()
	if !ok {
		return domain.ErrOverrideRejected
	}
	if err := o.rpc.SetActive(ctx, secret, id, active); err != nil {
		o.log.Warn().Err(err).Str("subject", id).Msg("override active write rejected")
		return domain.ErrOverrideRejected
	}
	return nil
}

func (o *Override) currentSecret() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return "", false
	}
	return o.secret, true
}
