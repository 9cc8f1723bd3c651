// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// ActorContext identifies the staff principal performing an operation.
// Identity is resolved by the caller (web API, CLI, batch job); the engine
// only consumes it for audit fields and authorization checks.
type ActorContext struct {
	ActorID     string
	Name        string
	Roles       []string
	Permissions []string
	HotelIDs    []string // Hotels the actor may operate on
	IsAdmin     bool
}

type actorContextKey struct{}

// WithActor adds ActorContext to context.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns ActorContext from context.
func GetActor(ctx context.Context) *ActorContext {
	if v, ok := ctx.Value(actorContextKey{}).(*ActorContext); ok {
		return v
	}
	return nil
}

// GetActorID returns actor ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ActorID
	}
	return ""
}

// HasRole checks if the actor has a specific role.
func HasRole(ctx context.Context, role string) bool {
	a := GetActor(ctx)
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasHotelAccess checks if the actor may operate on a hotel.
func HasHotelAccess(ctx context.Context, hotelID string) bool {
	a := GetActor(ctx)
	if a == nil {
		return false
	}
	if a.IsAdmin {
		return true
	}
	for _, id := range a.HotelIDs {
		if id == hotelID {
			return true
		}
	}
	return false
}
