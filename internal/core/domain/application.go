package domain

import (
	"errors"
	"time"
)

// ApplicationStatus represents the lifecycle state of a seller application.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationApproved  ApplicationStatus = "approved"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationCancelled ApplicationStatus = "cancelled"
)

// validApplicationTransitions defines the allowed status transitions.
// Approval and rejection are terminal except for re-application, which
// creates a new record rather than reviving an old one.
var validApplicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationPending: {ApplicationApproved, ApplicationRejected, ApplicationCancelled},
}

var ErrApplicationNotFound = errors.New("application not found")

// CanTransitionTo reports whether a transition from the current status to
// next is valid.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range validApplicationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SellerApplication is an externally owned record the engine observes. The
// engine never writes it; its only reaction is the one role-promotion side
// effect on an approved transition.
type SellerApplication struct {
	ID          string            `json:"id" bson:"_id,omitempty"`
	ApplicantID string            `json:"applicant_id" bson:"applicant_id"`
	Status      ApplicationStatus `json:"status" bson:"status"`
	CreatedAt   time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" bson:"updated_at"`
}
