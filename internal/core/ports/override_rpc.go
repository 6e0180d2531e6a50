package ports

import (
	"context"

	"github.com/campusmarket/session-engine/internal/core/domain"
)

// OverrideRPC is the secret-bearing side channel for privileged recovery
// operations. Every call carries the secret and is rejected server-side on
// mismatch; implementations must fail closed, never downgrade to an
// unprivileged write.
type OverrideRPC interface {
	Verify(ctx context.Context, secret string) error
	PromoteRole(ctx context.Context, secret, id string, role domain.Role) error
	SetActive(ctx context.Context, secret, id string, active bool) error
}

// PromotionGuard fences the role-promotion side effect so that observing the
// same approval event more than once performs exactly one durable write.
type PromotionGuard interface {
	// Acquire reports whether the caller won the right to perform the
	// promotion keyed by the application id.
	Acquire(ctx context.Context, applicationID string) (bool, error)
}
