// ABOUTME: Authentication context for tracking the caller through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// AuthContext holds the authenticated caller extracted from a request.
type AuthContext struct {
	Subject string
	// UserID is set when the token is bound to a single user.
	UserID string
}

// CanActFor reports whether the caller may operate on userID's agents and sessions.
func (a *AuthContext) CanActFor(userID string) bool {
	return a.UserID == "" || a.UserID == userID
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}

// Allowed reports whether the request in ctx may act for userID. Requests
// without an AuthContext are allowed; that is the case when auth is disabled.
func Allowed(ctx context.Context, userID string) bool {
	a := FromContext(ctx)
	return a == nil || a.CanActFor(userID)
}
