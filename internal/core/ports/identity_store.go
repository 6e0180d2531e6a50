package ports

import (
	"context"

	"github.com/campusmarket/session-engine/internal/core/domain"
)

// IdentityUpdate carries the mutable profile fields for UpdateByKey. Nil
// fields are left untouched.
type IdentityUpdate struct {
	DisplayName *string
	Role        *domain.Role
	IsActive    *bool
}

// IdentityStore defines the interface for durable profile persistence.
type IdentityStore interface {
	// FindByKey returns domain.ErrIdentityNotFound when no profile exists.
	FindByKey(ctx context.Context, id string) (*domain.Identity, error)

	// CreateIfAbsent inserts the profile. When another writer won the
	// creation race, the pre-existing row is returned instead of an error.
	CreateIfAbsent(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)

	// UpdateByKey applies the non-nil fields of upd to the stored profile.
	UpdateByKey(ctx context.Context, id string, upd IdentityUpdate) error
}

// RolePromoter performs the single client-initiated durable role write: the
// buyer-to-seller promotion after an approved application is observed.
type RolePromoter interface {
	PromoteRole(ctx context.Context, id string, role domain.Role) error
}
