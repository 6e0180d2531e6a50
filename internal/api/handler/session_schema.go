package handler

import (
	"github.com/campusmarket/session-engine/internal/core/domain"
)

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type overrideRequest struct {
	Secret string `json:"secret" validate:"required"`
}

type sessionResponse struct {
	Phase    domain.Phase     `json:"phase"`
	Identity *domain.Identity `json:"identity,omitempty"`
	Token    string           `json:"token,omitempty"`
}

type countersResponse struct {
	Counters    domain.DerivedCounters    `json:"counters"`
	Application *domain.SellerApplication `json:"application,omitempty"`
}
