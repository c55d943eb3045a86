// ABOUTME: Request context helpers for verified credential claims
// ABOUTME: Provides WithClaims/ClaimsFromContext for handlers behind the gate

package auth

import (
	"context"
)

// claimsContextKey is the key type for storing Claims in context.Context.
type claimsContextKey struct{}

// WithClaims returns a new context with the verified claims attached.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext retrieves the claims attached by the gate middleware.
// Returns nil when the gate is disabled or the request bypassed it.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// SubjectFromContext returns the credential subject, or "anonymous" when no
// claims are attached.
func SubjectFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil && claims.Subject != "" {
		return claims.Subject
	}
	return "anonymous"
}
