package service

import (
	"net/url"

	"github.com/campusmarket/session-engine/internal/api/metrics"
	"github.com/campusmarket/session-engine/internal/core/domain"
)

// Redirect targets used by gate decisions. The originally requested path is
// carried in the "next" query parameter for post-login resumption.
const (
	LoginPath             = "/auth/login"
	ApplicationStatusPath = "/seller/application"
)

// Verdict is the outcome class of an authorization decision.
type Verdict string

const (
	// VerdictPending means the session is still initializing; render a wait
	// indicator and re-ask once a phase transition arrives.
	VerdictPending Verdict = "pending"
	VerdictAllow   Verdict = "allow"
	// VerdictRedirect carries a Path the caller should navigate to.
	VerdictRedirect Verdict = "redirect"
	// VerdictDeny carries the required and actual roles for display.
	VerdictDeny Verdict = "deny"
)

// Decision is the result of one authorization gate evaluation.
type Decision struct {
	Verdict  Verdict
	Path     string
	Required []domain.Role
	Actual   domain.Role
}

// Decide is the pure authorization gate. It maps the session phase, cached
// identity, any observed seller application, and the requested path to a
// decision. It performs no I/O and mutates nothing.
//
// Rules, in order: an initializing session is pending; an unauthenticated
// one redirects to login preserving the requested path; an empty role
// requirement allows; a matching role allows; a buyer asking for a
// seller-only resource with an observed, not-yet-approved application is
// redirected to the application status page instead of a bare denial;
// anything else is denied with required-vs-actual roles attached.
func Decide(phase domain.Phase, identity *domain.Identity, app *domain.SellerApplication, requestedPath string, required ...domain.Role) Decision {
	d := decide(phase, identity, app, requestedPath, required)
	metrics.GateDecisionsTotal.WithLabelValues(string(d.Verdict)).Inc()
	return d
}

func decide(phase domain.Phase, identity *domain.Identity, app *domain.SellerApplication, requestedPath string, required []domain.Role) Decision {
	switch phase {
	case domain.PhaseUninitialized, domain.PhaseInitializing:
		return Decision{Verdict: VerdictPending}
	case domain.PhaseUnauthenticated:
		return Decision{Verdict: VerdictRedirect, Path: loginRedirect(requestedPath)}
	}

	if identity == nil {
		return Decision{Verdict: VerdictRedirect, Path: loginRedirect(requestedPath)}
	}

	if len(required) == 0 {
		return Decision{Verdict: VerdictAllow}
	}

	if identity.Role.In(required...) {
		return Decision{Verdict: VerdictAllow}
	}

	if identity.Role == domain.DefaultRole && domain.RoleSeller.In(required...) && hasUnapprovedApplication(app) {
		return Decision{Verdict: VerdictRedirect, Path: ApplicationStatusPath}
	}

	return Decision{Verdict: VerdictDeny, Required: required, Actual: identity.Role}
}

// hasUnapprovedApplication reports whether the user has an observed
// application that has not been approved: pending, rejected, or cancelled
// records all route to the status page rather than a generic denial.
func hasUnapprovedApplication(app *domain.SellerApplication) bool {
	return app != nil && app.Status != domain.ApplicationApproved
}

func loginRedirect(requestedPath string) string {
	if requestedPath == "" {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(requestedPath)
}
