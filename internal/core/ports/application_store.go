package ports

import (
	"context"

	"github.com/campusmarket/session-engine/internal/core/domain"
)

// ApplicationStore reads externally owned seller applications. Returns
// domain.ErrApplicationNotFound when the applicant has never applied.
type ApplicationStore interface {
	FindByApplicant(ctx context.Context, applicantID string) (*domain.SellerApplication, error)
}
