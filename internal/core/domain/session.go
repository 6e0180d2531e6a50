package domain

import "errors"

// Phase represents the lifecycle state of the client session.
type Phase string

const (
	PhaseUninitialized   Phase = "uninitialized"
	PhaseInitializing    Phase = "initializing"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

// validPhaseTransitions defines the allowed session state machine
// transitions. Re-entering Initializing is never legal.
var validPhaseTransitions = map[Phase][]Phase{
	PhaseUninitialized:   {PhaseInitializing},
	PhaseInitializing:    {PhaseAuthenticated, PhaseUnauthenticated},
	PhaseAuthenticated:   {PhaseUnauthenticated},
	PhaseUnauthenticated: {PhaseAuthenticated},
}

var ErrInvalidPhaseTransition = errors.New("invalid session phase transition")

// CanTransitionTo reports whether a transition from the current phase to
// next is valid.
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range validPhaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PhaseChange is delivered to session listeners on every transition.
type PhaseChange struct {
	From Phase
	To   Phase
}
