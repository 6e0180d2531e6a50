package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/campusmarket/session-engine/internal/api/metrics"
	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

// ProfileResolver guarantees a usable Identity exists despite backend
// inconsistency. It never fails: a missing profile is self-healed by
// creation, and any other store failure degrades to an ephemeral profile
// synthesized from the auth provider's claims.
type ProfileResolver struct {
	store ports.IdentityStore
	log   zerolog.Logger

	// group collapses overlapping resolutions for the same subject into a
	// single in-flight store round trip.
	group singleflight.Group
}

// NewProfileResolver returns a ProfileResolver backed by the given store.
func NewProfileResolver(store ports.IdentityStore, log zerolog.Logger) *ProfileResolver {
	return &ProfileResolver{store: store, log: log}
}

// Resolve returns a profile for the given claims, or nil when the claims
// carry no subject at all. It never returns an error; read-path backend
// failures are invisible by design.
func (r *ProfileResolver) Resolve(ctx context.Context, claims ports.Claims) *domain.Identity {
	if claims.Subject == "" {
		metrics.ProfileResolutionsTotal.WithLabelValues("no_claims").Inc()
		return nil
	}

	v, _, _ := r.group.Do(claims.Subject, func() (any, error) {
		return r.resolve(ctx, claims), nil
	})

	identity, _ := v.(*domain.Identity)
	return identity.Clone()
}

func (r *ProfileResolver) resolve(ctx context.Context, claims ports.Claims) *domain.Identity {
	identity, err := r.store.FindByKey(ctx, claims.Subject)
	if err == nil {
		metrics.ProfileResolutionsTotal.WithLabelValues("found").Inc()
		return identity
	}

	if errors.Is(err, domain.ErrIdentityNotFound) {
		created, createErr := r.store.CreateIfAbsent(ctx, defaultProfile(claims))
		if createErr == nil {
			r.log.Info().Str("subject", claims.Subject).Msg("profile created for missing identity")
			metrics.ProfileResolutionsTotal.WithLabelValues("created").Inc()
			return created
		}
		r.log.Warn().Err(createErr).Str("subject", claims.Subject).Msg("profile creation failed, using ephemeral fallback")
		return r.fallback(claims)
	}

	// Network or authorization failure: distinguishable in logs, but both
	// degrade to a fallback so callers never block on the backend.
	r.log.Warn().Err(err).Str("subject", claims.Subject).Msg("profile fetch failed, using ephemeral fallback")
	return r.fallback(claims)
}

func (r *ProfileResolver) fallback(claims ports.Claims) *domain.Identity {
	metrics.ProfileResolutionsTotal.WithLabelValues("fallback").Inc()
	identity := defaultProfile(claims)
	identity.Ephemeral = true
	return identity
}

// defaultProfile seeds a new buyer profile from the provider's claims.
func defaultProfile(claims ports.Claims) *domain.Identity {
	name := claims.DisplayName
	if name == "" {
		name = claims.Email
	}
	return &domain.Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: name,
		Role:        domain.DefaultRole,
		IsActive:    true,
	}
}
