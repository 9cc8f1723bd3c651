// Package audit provides the audit contract and audit field enrichment for
// domain entities.
package audit

import (
	"context"

	"stockbook/internal/core/security"
)

// EnrichCreatedBy stamps CreatedBy and UpdatedBy from the context actor.
// Call on freshly built documents before their first save.
//
// If no actor is in context, this is a no-op.
func EnrichCreatedBy(ctx context.Context, createdBy, updatedBy *string) {
	actorID := security.GetActorID(ctx)
	if actorID != "" && createdBy != nil && updatedBy != nil {
		*createdBy = actorID
		*updatedBy = actorID
	}
}

// EnrichUpdatedBy stamps only UpdatedBy from the context actor. Call
// before persisting a mutation of an existing document.
func EnrichUpdatedBy(ctx context.Context, updatedBy *string) {
	actorID := security.GetActorID(ctx)
	if actorID != "" && updatedBy != nil {
		*updatedBy = actorID
	}
}
