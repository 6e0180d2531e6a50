package ports

import "context"

// Claims are the self-declared attributes the auth provider vouches for.
// They seed default profiles when the identity store has no record.
type Claims struct {
	Subject     string
	Email       string
	DisplayName string
}

// AuthSession is the provider-issued credential for an authenticated user.
type AuthSession struct {
	Token  string
	Claims Claims
}

// AuthChange notifies listeners of provider-side session transitions.
type AuthChange struct {
	SignedIn bool
	Session  *AuthSession
}

// AuthProvider is the external credential authority. The engine never
// verifies passwords itself; it delegates and reacts.
type AuthProvider interface {
	// SignInWithPassword returns domain.ErrInvalidCredentials on any
	// credential mismatch.
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)

	// SignOut invalidates the current provider session. Best effort.
	SignOut(ctx context.Context) error

	// CurrentSession returns the restored session, or nil when none exists.
	CurrentSession(ctx context.Context) (*AuthSession, error)

	// OnAuthStateChange registers a listener for provider-side transitions
	// and returns an unsubscribe function.
	OnAuthStateChange(fn func(AuthChange)) (unsubscribe func())
}
