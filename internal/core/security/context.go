// Package security provides security-related utilities including actor context management.
package security

import "context"

type actorIDKey struct{}

// WithActorID adds actor ID to context.
// Used by callers to propagate the acting staff member through the chain.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// GetActorID retrieves actor ID from context.
// Returns empty string if not found.
//
// Usage in domain layer:
//
//	actorID := security.GetActorID(ctx)
//	if actorID != "" {
//	    entity.CreatedBy = actorID
//	}
func GetActorID(ctx context.Context) string {
	if aid, ok := ctx.Value(actorIDKey{}).(string); ok {
		return aid
	}
	return ""
}
