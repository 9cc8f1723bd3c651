package audit

import (
	"context"

	"stockbook/internal/core/id"
)

// Audited actions recorded by the engine.
const (
	ActionApprove = "approve"
	ActionReopen  = "reopen"
	ActionRecalc  = "recalc"
)

// Recorder persists audit entries for state-changing operations.
// The postgres implementation compresses large change payloads; tests use
// NopRecorder.
type Recorder interface {
	// Record writes one audit entry inside the current transaction.
	// Changes is marshalled to JSON by the implementation.
	Record(ctx context.Context, entityType string, entityID id.ID, action string, changes any) error
}

// NopRecorder discards audit entries.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, entityType string, entityID id.ID, action string, changes any) error {
	return nil
}
