package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

func TestResolveReturnsExistingProfile(t *testing.T) {
	store := newStubIdentityStore()
	store.put(&domain.Identity{ID: "u1", Email: "u1@campus.edu", Role: domain.RoleSeller, IsActive: true})
	resolver := NewProfileResolver(store, testLogger())

	identity := resolver.Resolve(context.Background(), ports.Claims{Subject: "u1", Email: "u1@campus.edu"})
	if identity == nil {
		t.Fatal("expected identity, got nil")
	}
	if identity.Role != domain.RoleSeller {
		t.Errorf("expected stored role seller, got %s", identity.Role)
	}
	if identity.Ephemeral {
		t.Error("stored profile must not be ephemeral")
	}
	if store.createCount() != 0 {
		t.Errorf("expected no create attempts, got %d", store.createCount())
	}
}

func TestResolveCreatesMissingProfile(t *testing.T) {
	store := newStubIdentityStore()
	resolver := NewProfileResolver(store, testLogger())

	identity := resolver.Resolve(context.Background(), ports.Claims{Subject: "u1", Email: "u1@campus.edu"})
	if identity == nil {
		t.Fatal("expected identity, got nil")
	}
	if identity.Role != domain.DefaultRole {
		t.Errorf("expected default role %s, got %s", domain.DefaultRole, identity.Role)
	}
	if identity.DisplayName != "u1@campus.edu" {
		t.Errorf("expected display name seeded from email, got %q", identity.DisplayName)
	}
	if identity.Ephemeral {
		t.Error("created profile must not be ephemeral")
	}
	if store.createCount() != 1 {
		t.Errorf("expected exactly one create, got %d", store.createCount())
	}
}

func TestResolveFallsBackOnStoreFailure(t *testing.T) {
	store := newStubIdentityStore()
	store.findErr = errors.New("connection refused")
	resolver := NewProfileResolver(store, testLogger())

	identity := resolver.Resolve(context.Background(), ports.Claims{Subject: "u1", Email: "u1@campus.edu", DisplayName: "Uno"})
	if identity == nil {
		t.Fatal("expected ephemeral fallback, got nil")
	}
	if !identity.Ephemeral {
		t.Error("fallback profile must be marked ephemeral")
	}
	if identity.Role != domain.DefaultRole {
		t.Errorf("fallback must carry default role, got %s", identity.Role)
	}
	if identity.DisplayName != "Uno" {
		t.Errorf("expected display name from claims, got %q", identity.DisplayName)
	}
}

func TestResolveNilOnEmptySubject(t *testing.T) {
	resolver := NewProfileResolver(newStubIdentityStore(), testLogger())
	if identity := resolver.Resolve(context.Background(), ports.Claims{}); identity != nil {
		t.Fatalf("expected nil for empty subject, got %+v", identity)
	}
}

func TestResolveCollapsesConcurrentResolutions(t *testing.T) {
	store := newStubIdentityStore()
	resolver := NewProfileResolver(store, testLogger())
	claims := ports.Claims{Subject: "u1", Email: "u1@campus.edu"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if identity := resolver.Resolve(context.Background(), claims); identity == nil {
				t.Error("expected identity from concurrent resolve")
			}
		}()
	}
	wg.Wait()

	// Overlapping calls share one round trip; later calls may re-query but
	// never observe the row as missing again.
	if got := store.createCount(); got != 1 {
		t.Fatalf("expected exactly one create for racing resolutions, got %d", got)
	}
}
