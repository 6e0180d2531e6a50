package domain

import (
	"errors"
	"time"
)

// Role is the closed set of authorization roles a profile can hold.
type Role string

const (
	RoleBuyer         Role = "buyer"
	RoleSeller        Role = "seller"
	RoleNewsPublisher Role = "news_publisher"
	RoleAdmin         Role = "admin"
	RoleSuperAdmin    Role = "super_admin"
)

// DefaultRole is assigned to newly created profiles.
const DefaultRole = RoleBuyer

var ErrIdentityNotFound = errors.New("identity not found")
var ErrIdentityExists = errors.New("identity already exists")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrOverrideRejected = errors.New("override secret rejected")

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleNewsPublisher, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// In reports whether r is contained in the given role set.
func (r Role) In(roles ...Role) bool {
	for _, allowed := range roles {
		if r == allowed {
			return true
		}
	}
	return false
}

// Identity is the resolved representation of "who is the current user".
// The engine holds a cached, possibly-stale copy; the identity store owns
// the durable record.
type Identity struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Email       string    `json:"email" bson:"email"`
	DisplayName string    `json:"display_name" bson:"display_name"`
	Role        Role      `json:"role" bson:"role"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	LastSeenAt  time.Time `json:"last_seen_at,omitempty" bson:"last_seen_at,omitempty"`
	IsOnline    bool      `json:"is_online" bson:"is_online"`

	// Ephemeral marks a synthesized fallback profile that was never
	// persisted. Callers must not treat it as the durable record.
	Ephemeral bool `json:"ephemeral,omitempty" bson:"-"`
}

// Clone returns a value copy so callers can hand out snapshots.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}
