package periods

import (
	"context"
	"fmt"
	"time"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/core/security"
	"stockbook/internal/core/tx"
	"stockbook/internal/domain/audit"
	"stockbook/internal/domain/events"
	"stockbook/pkg/logger"
)

// StocktakeGateway is the narrow view of the stocktake engine the period
// manager needs. The stocktake side owns the document; periods only ever
// address it through the period's date range.
type StocktakeGateway interface {
	// IsApproved reports whether the period's stocktake is approved.
	// False when no stocktake exists yet.
	IsApproved(ctx context.Context, p *Period) (bool, error)

	// RevertApproval flips the period's approved stocktake back to draft
	// and deletes the period's snapshots. Called inside the reopen
	// transaction with the period row already locked.
	RevertApproval(ctx context.Context, p *Period) error

	// HasLaterDraft reports whether a draft stocktake exists for a later
	// period of the hotel. Its openings were seeded from balances the
	// reopen is about to invalidate.
	HasLaterDraft(ctx context.Context, p *Period) (bool, error)
}

// ReopenResult reports a completed reopen and any advisory warnings.
type ReopenResult struct {
	Period   *Period              `json:"period"`
	Warnings []*apperror.AppError `json:"warnings,omitempty"`
}

// Manager owns period lifecycle: create, close, reopen.
type Manager struct {
	repo      Repository
	stocktake StocktakeGateway
	txManager tx.Manager
	publisher events.Publisher
}

// NewManager creates a period manager. The stocktake gateway is attached
// after construction because the stocktake engine is built on top of the
// manager.
func NewManager(repo Repository, txManager tx.Manager, publisher events.Publisher) *Manager {
	return &Manager{
		repo:      repo,
		txManager: txManager,
		publisher: publisher,
	}
}

// AttachStocktakeGateway wires the stocktake side in. Must be called
// before Close or Reopen are used.
func (m *Manager) AttachStocktakeGateway(gw StocktakeGateway) {
	m.stocktake = gw
}

// Create opens a new period. Fails with DuplicatePeriodError when any
// same-type period of the hotel overlaps the requested range.
func (m *Manager) Create(ctx context.Context, hotelID id.ID, start, end time.Time, periodType PeriodType) (*Period, error) {
	p := NewPeriod(hotelID, start, end, periodType)
	audit.EnrichCreatedBy(ctx, &p.CreatedBy, &p.UpdatedBy)
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		overlapping, err := m.repo.FindOverlapping(ctx, hotelID, periodType, p.StartDate, p.EndDate)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if len(overlapping) > 0 {
			return apperror.NewDuplicatePeriod(
				hotelID.String(),
				p.StartDate.Format("2006-01-02"),
				p.EndDate.Format("2006-01-02"),
			).WithDetail("conflicting_period", overlapping[0].ID.String())
		}
		return m.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "period created",
		"period_id", p.ID,
		"hotel_id", hotelID,
		"label", p.Label(),
	)
	return p, nil
}

// GetByID retrieves a period.
func (m *Manager) GetByID(ctx context.Context, periodID id.ID) (*Period, error) {
	p, err := m.repo.GetByID(ctx, periodID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("period", periodID.String())
		}
		return nil, err
	}
	return p, nil
}

// FindPrior returns the latest earlier same-type period, or nil for the
// first-ever period.
func (m *Manager) FindPrior(ctx context.Context, p *Period) (*Period, error) {
	return m.repo.FindPrior(ctx, p)
}

// FindByDateRange resolves a period from its canonical (hotel, start, end)
// tuple.
func (m *Manager) FindByDateRange(ctx context.Context, hotelID id.ID, start, end time.Time) (*Period, error) {
	return m.repo.FindByDateRange(ctx, hotelID, start, end)
}

// ListByHotel returns the hotel's periods, newest first.
func (m *Manager) ListByHotel(ctx context.Context, hotelID id.ID, limit, offset int) ([]*Period, error) {
	return m.repo.ListByHotel(ctx, hotelID, limit, offset)
}

// Close flags a period closed. Normally stocktake approval closes the
// period in its own transaction; this operation exists for admin recovery.
// Idempotent when already closed; requires the stocktake to be approved.
func (m *Manager) Close(ctx context.Context, periodID id.ID, actor string) error {
	return m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := m.repo.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}

		if p.IsClosed {
			return nil
		}

		approved, err := m.stocktake.IsApproved(ctx, p)
		if err != nil {
			return err
		}
		if !approved {
			return apperror.NewInvalidStateTransition("period", "open", "closed").
				WithDetail("reason", "stocktake is not approved").
				WithDetail("period_id", p.ID.String())
		}

		p.MarkClosed(actor, time.Now().UTC())
		audit.EnrichUpdatedBy(ctx, &p.UpdatedBy)
		if err := m.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("close period: %w", err)
		}

		logger.Info(ctx, "period closed", "period_id", p.ID, "actor", actor)
		return nil
	})
}

// Reopen clears the closed flag AND reverts the stocktake approval in one
// transaction; a reopened period with a still-approved stocktake is never
// observable. Refuses when a later same-type period is already closed;
// warns when a later draft stocktake exists whose openings need re-seeding.
func (m *Manager) Reopen(ctx context.Context, periodID id.ID, actor string) (*ReopenResult, error) {
	scope := security.GetScope(ctx)
	if err := scope.RequirePermission("period", security.PermissionReopen); err != nil {
		return nil, err
	}

	result := &ReopenResult{}
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := m.repo.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}

		if !p.IsClosed {
			return apperror.NewInvalidStateTransition("period", "open", "reopened").
				WithDetail("period_id", p.ID.String()).
				WithDetail("reason", "period is not closed")
		}

		later, err := m.repo.FindLaterClosed(ctx, p)
		if err != nil {
			return err
		}
		if later != nil {
			return apperror.NewInvalidStateTransition("period", "closed", "reopened").
				WithDetail("reason", "a later period is already closed; reopen in reverse order").
				WithDetail("later_period_id", later.ID.String())
		}

		// Stocktake back to draft and snapshots gone, same transaction.
		if err := m.stocktake.RevertApproval(ctx, p); err != nil {
			return err
		}

		p.MarkReopened(actor, time.Now().UTC())
		audit.EnrichUpdatedBy(ctx, &p.UpdatedBy)
		if err := m.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("reopen period: %w", err)
		}

		hasDraft, err := m.stocktake.HasLaterDraft(ctx, p)
		if err != nil {
			return err
		}
		if hasDraft {
			result.Warnings = append(result.Warnings,
				apperror.NewBusinessRule(apperror.CodeBusinessRule,
					"a later draft stocktake exists; its opening balances must be re-seeded after this period is re-approved"))
		}

		if err := m.publisher.Publish(ctx, events.DomainEvent{
			AggregateType: "Period",
			AggregateID:   p.ID,
			EventType:     events.TypePeriodReopened,
			Payload: map[string]any{
				"hotel_id":     p.HotelID,
				"start_date":   p.StartDate.Format("2006-01-02"),
				"end_date":     p.EndDate.Format("2006-01-02"),
				"reopened_by":  actor,
				"reopen_count": p.ReopenCount,
			},
		}); err != nil {
			return fmt.Errorf("publish reopen event: %w", err)
		}

		result.Period = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "period reopened",
		"period_id", result.Period.ID,
		"actor", actor,
		"warnings", len(result.Warnings),
	)
	return result, nil
}
