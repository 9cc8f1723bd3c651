// Package security provides authorization and access control.
package security

import (
	"context"
	"fmt"

	"stockbook/internal/core/apperror"
	appctx "stockbook/internal/core/context"
)

// Permission defines available permissions in the system.
type Permission string

const (
	// CRUD permissions
	PermissionRead   Permission = "read"
	PermissionCreate Permission = "create"
	PermissionUpdate Permission = "update"
	PermissionDelete Permission = "delete"

	// Stocktake-specific permissions
	PermissionCount   Permission = "count"
	PermissionApprove Permission = "approve"
	PermissionReopen  Permission = "reopen"

	// Ledger permissions
	PermissionRecord Permission = "record"

	// Admin permissions
	PermissionRecalc Permission = "recalc"
	PermissionAdmin  Permission = "admin"
	PermissionAudit  Permission = "audit"
)

// Role defines a set of permissions.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleStockManager Role = "stock_manager"
	RoleSupervisor   Role = "supervisor"
	RoleCounter      Role = "counter"
	RoleViewer       Role = "viewer"
)

// AccessScope defines the boundaries of data visibility for current request.
// Used for authorization decisions (hotel access, reopen rights) and for
// consistent logging/audit context.
type AccessScope struct {
	// ActorID is the acting staff member
	ActorID string

	// IsAdmin bypasses hotel filtering
	IsAdmin bool

	// AllowedHotelIDs limits access to specific hotels
	// Empty = no access (unless IsAdmin)
	AllowedHotelIDs []string

	// Permissions available to the actor
	Permissions map[string][]Permission
}

// NewAccessScope creates AccessScope from context.
func NewAccessScope(ctx context.Context) *AccessScope {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return &AccessScope{}
	}

	return &AccessScope{
		ActorID:         actor.ActorID,
		IsAdmin:         actor.IsAdmin,
		AllowedHotelIDs: actor.HotelIDs,
	}
}

// CanAccessHotel checks if the actor can access a hotel.
func (s *AccessScope) CanAccessHotel(hotelID string) bool {
	if s.IsAdmin {
		return true
	}
	for _, id := range s.AllowedHotelIDs {
		if id == hotelID {
			return true
		}
	}
	return false
}

// HasPermission checks if the actor has permission on entity.
func (s *AccessScope) HasPermission(entity string, perm Permission) bool {
	if s.IsAdmin {
		return true
	}
	if perms, ok := s.Permissions[entity]; ok {
		for _, p := range perms {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// RequirePermission returns error if permission is missing.
func (s *AccessScope) RequirePermission(entity string, perm Permission) error {
	if !s.HasPermission(entity, perm) {
		return apperror.NewForbidden(
			fmt.Sprintf("permission %s on %s required", perm, entity),
		).WithDetail("entity", entity).WithDetail("permission", perm)
	}
	return nil
}

// FilterHotelIDs returns intersection of requested and allowed hotel IDs.
// Used to safely filter queries by hotel.
func (s *AccessScope) FilterHotelIDs(requestedHotels []string) []string {
	if s.IsAdmin {
		return requestedHotels
	}

	if len(requestedHotels) == 0 {
		return s.AllowedHotelIDs
	}

	allowed := make(map[string]bool, len(s.AllowedHotelIDs))
	for _, id := range s.AllowedHotelIDs {
		allowed[id] = true
	}

	var result []string
	for _, id := range requestedHotels {
		if allowed[id] {
			result = append(result, id)
		}
	}
	return result
}

// --- Context-based scope access ---

type scopeKey struct{}

// WithScope adds AccessScope to context.
func WithScope(ctx context.Context, scope *AccessScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// GetScope returns AccessScope from context.
func GetScope(ctx context.Context) *AccessScope {
	if v, ok := ctx.Value(scopeKey{}).(*AccessScope); ok {
		return v
	}
	return NewAccessScope(ctx)
}
