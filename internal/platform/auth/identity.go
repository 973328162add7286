// Package auth carries the authenticated principal across the request
// boundary. Token validation itself lives behind the TokenVerifier
// interface; this API only consumes the verified identity.
package auth

import "context"

// Identity captures the authenticated principal extracted from a verified token.
type Identity struct {
	UID   string
	Email string
}

type contextKey string

const identityContextKey contextKey = "github.com/oakline/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
