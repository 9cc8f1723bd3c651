package security

import (
	"context"
	"time"

	"stockbook/internal/core/apperror"
)

// ClosePolicy defines how a hotel treats writes that touch closed stock
// periods. Different hotels run different regimes (strict vs flexible).
type ClosePolicy interface {
	// CanRecordClosed decides whether a ledger entry dated inside an
	// already-closed period may be recorded. A nil return means the entry
	// is accepted; the caller surfaces a warning either way, because the
	// closed period's totals are frozen and will not include it.
	CanRecordClosed(ctx context.Context, occurredAt, closedUntil time.Time) error

	// CanApprove checks whether a stocktake dated docDate may still be
	// approved (backdating window).
	CanApprove(ctx context.Context, docDate time.Time) error

	// CanModify checks whether draft data dated docDate may still be edited.
	CanModify(ctx context.Context, docDate time.Time) error
}

// StrictClosePolicy rejects every write into a closed period and caps
// backdated approvals. Used where month-end figures feed accounting.
type StrictClosePolicy struct {
	backdateGrace time.Duration
}

// NewStrictClosePolicy creates a policy with the given backdating grace
// window for approvals.
func NewStrictClosePolicy(backdateGrace time.Duration) *StrictClosePolicy {
	return &StrictClosePolicy{backdateGrace: backdateGrace}
}

func (p *StrictClosePolicy) CanRecordClosed(ctx context.Context, occurredAt, closedUntil time.Time) error {
	return apperror.NewPeriodClosed(closedUntil.Format("2006-01-02")).
		WithDetail("occurred_at", occurredAt.Format(time.RFC3339))
}

func (p *StrictClosePolicy) CanApprove(ctx context.Context, docDate time.Time) error {
	if p.backdateGrace > 0 && time.Since(docDate) > p.backdateGrace {
		return apperror.NewPeriodClosed(docDate.Format("2006-01-02")).
			WithDetail("reason", "approval backdating window passed")
	}
	return nil
}

func (p *StrictClosePolicy) CanModify(ctx context.Context, docDate time.Time) error {
	return p.CanApprove(ctx, docDate)
}

// FlexibleClosePolicy accepts late entries into closed periods (the caller
// attaches a warning) and does not cap backdated approvals.
type FlexibleClosePolicy struct {
	warningThreshold time.Duration
}

// NewFlexibleClosePolicy creates a policy that warns instead of rejecting.
func NewFlexibleClosePolicy(warningThreshold time.Duration) *FlexibleClosePolicy {
	return &FlexibleClosePolicy{warningThreshold: warningThreshold}
}

func (p *FlexibleClosePolicy) CanRecordClosed(ctx context.Context, occurredAt, closedUntil time.Time) error {
	return nil
}

func (p *FlexibleClosePolicy) CanApprove(ctx context.Context, docDate time.Time) error {
	return nil
}

func (p *FlexibleClosePolicy) CanModify(ctx context.Context, docDate time.Time) error {
	return nil
}

// IsBackdatedWarning checks if an operation deserves a warning.
func (p *FlexibleClosePolicy) IsBackdatedWarning(docDate time.Time) bool {
	if p.warningThreshold == 0 {
		return false
	}
	return time.Since(docDate) > p.warningThreshold
}

// OpenPolicy allows all operations (for development/testing).
type OpenPolicy struct{}

func (OpenPolicy) CanRecordClosed(ctx context.Context, occurredAt, closedUntil time.Time) error {
	return nil
}
func (OpenPolicy) CanApprove(ctx context.Context, docDate time.Time) error { return nil }
func (OpenPolicy) CanModify(ctx context.Context, docDate time.Time) error  { return nil }
