package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/service"
)

type staticState struct {
	phase    domain.Phase
	identity *domain.Identity
	app      *domain.SellerApplication
}

func (s staticState) Phase() domain.Phase                    { return s.phase }
func (s staticState) Identity() *domain.Identity             { return s.identity }
func (s staticState) Application() *domain.SellerApplication { return s.app }

func invokeGuard(t *testing.T, state SessionState, path string, required ...domain.Role) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Guard(state, required...)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func TestGuardAllowsMatchingRole(t *testing.T) {
	state := staticState{
		phase:    domain.PhaseAuthenticated,
		identity: &domain.Identity{ID: "u1", Role: domain.RoleSeller},
	}
	rec := invokeGuard(t, state, "/seller/listings", domain.RoleSeller)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGuardAnswersServiceUnavailableWhileInitializing(t *testing.T) {
	state := staticState{phase: domain.PhaseInitializing}
	rec := invokeGuard(t, state, "/seller/listings", domain.RoleSeller)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Error("expected Retry-After header")
	}
}

func TestGuardRedirectsUnauthenticatedToLogin(t *testing.T) {
	state := staticState{phase: domain.PhaseUnauthenticated}
	rec := invokeGuard(t, state, "/seller/listings", domain.RoleSeller)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	want := service.LoginPath + "?next=%2Fseller%2Flistings"
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("expected location %q, got %q", want, got)
	}
}

func TestGuardRedirectsApplicantToStatusPage(t *testing.T) {
	state := staticState{
		phase:    domain.PhaseAuthenticated,
		identity: &domain.Identity{ID: "u1", Role: domain.RoleBuyer},
		app:      &domain.SellerApplication{ID: "app1", ApplicantID: "u1", Status: domain.ApplicationPending},
	}
	rec := invokeGuard(t, state, "/seller/listings", domain.RoleSeller)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != service.ApplicationStatusPath {
		t.Errorf("expected location %q, got %q", service.ApplicationStatusPath, got)
	}
}

func TestGuardDeniesMismatchedRole(t *testing.T) {
	state := staticState{
		phase:    domain.PhaseAuthenticated,
		identity: &domain.Identity{ID: "u1", Role: domain.RoleBuyer},
	}
	rec := invokeGuard(t, state, "/admin", domain.RoleAdmin)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
