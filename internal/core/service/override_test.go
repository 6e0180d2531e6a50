package service

import (
	"context"
	"errors"
	"testing"

	"github.com/campusmarket/session-engine/internal/core/domain"
)

func TestOverrideActivateWithValidSecret(t *testing.T) {
	rpc := &stubOverrideRPC{secret: "recovery-secret"}
	override := NewOverride(rpc, testLogger())

	if err := override.Activate(context.Background(), "recovery-secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !override.Active() {
		t.Fatal("expected channel armed")
	}

	identity := override.Identity()
	if identity == nil {
		t.Fatal("expected pseudo-identity while armed")
	}
	if identity.Role != domain.RoleSuperAdmin {
		t.Errorf("expected super_admin, got %s", identity.Role)
	}
	if !identity.Ephemeral {
		t.Error("pseudo-identity must be ephemeral")
	}
}

func TestOverrideRejectsWrongSecret(t *testing.T) {
	rpc := &stubOverrideRPC{secret: "recovery-secret"}
	override := NewOverride(rpc, testLogger())

	if err := override.Activate(context.Background(), "guess"); !errors.Is(err, domain.ErrOverrideRejected) {
		t.Fatalf("expected ErrOverrideRejected, got %v", err)
	}
	if override.Active() {
		t.Fatal("channel must stay disarmed after rejection")
	}
	if override.Identity() != nil {
		t.Fatal("no pseudo-identity while disarmed")
	}
}

func TestOverrideWritesFailClosedWhileDisarmed(t *testing.T) {
	rpc := &stubOverrideRPC{secret: "recovery-secret"}
	override := NewOverride(rpc, testLogger())

	if err := override.PromoteRole(context.Background(), "u1", domain.RoleSeller); !errors.Is(err, domain.ErrOverrideRejected) {
		t.Fatalf("expected ErrOverrideRejected, got %v", err)
	}
	if err := override.SetActive(context.Background(), "u1", false); !errors.Is(err, domain.ErrOverrideRejected) {
		t.Fatalf("expected ErrOverrideRejected, got %v", err)
	}
	if rpc.writeCount() != 0 {
		t.Fatalf("expected no writes through the channel, got %d", rpc.writeCount())
	}
}

func TestOverridePromoteRoleRoutesThroughChannel(t *testing.T) {
	rpc := &stubOverrideRPC{secret: "recovery-secret"}
	override := NewOverride(rpc, testLogger())

	if err := override.Activate(context.Background(), "recovery-secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := override.PromoteRole(context.Background(), "u1", domain.RoleSeller); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rpc.writeCount() != 1 {
		t.Fatalf("expected one role write, got %d", rpc.writeCount())
	}
}

func TestOverrideDeactivateDisarms(t *testing.T) {
	rpc := &stubOverrideRPC{secret: "recovery-secret"}
	override := NewOverride(rpc, testLogger())

	if err := override.Activate(context.Background(), "recovery-secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	override.Deactivate()

	if override.Active() {
		t.Fatal("expected channel disarmed")
	}
	if err := override.PromoteRole(context.Background(), "u1", domain.RoleSeller); !errors.Is(err, domain.ErrOverrideRejected) {
		t.Fatalf("expected ErrOverrideRejected after deactivate, got %v", err)
	}
}
