package movement

import (
	"context"
	"fmt"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/security"
	"stockbook/internal/core/tx"
	"stockbook/internal/domain/catalogs/hotel"
	"stockbook/internal/domain/events"
	"stockbook/internal/domain/periods"
	"stockbook/pkg/logger"
)

// ItemChecker is the slice of the item catalog the ledger needs.
type ItemChecker interface {
	Exists(ctx context.Context, itemID id.ID) (bool, error)
}

// RecordResult reports accepted entries and advisory warnings (late
// entries into closed periods under a flexible close policy).
type RecordResult struct {
	Recorded int                  `json:"recorded"`
	Warnings []*apperror.AppError `json:"warnings,omitempty"`
}

// Service provides business operations for the movement ledger.
type Service struct {
	repo       Repository
	items      ItemChecker
	periodRepo periods.Repository
	config     hotel.ConfigProvider
	txManager  tx.Manager
	publisher  events.Publisher
}

// NewService creates a ledger service.
func NewService(
	repo Repository,
	items ItemChecker,
	periodRepo periods.Repository,
	config hotel.ConfigProvider,
	txManager tx.Manager,
	publisher events.Publisher,
) *Service {
	return &Service{
		repo:       repo,
		items:      items,
		periodRepo: periodRepo,
		config:     config,
		txManager:  txManager,
		publisher:  publisher,
	}
}

// closePolicyFor maps the hotel's configured mode to a policy object.
func closePolicyFor(cfg hotel.Config) security.ClosePolicy {
	if cfg.ClosePolicy == hotel.ClosePolicyFlexible {
		return security.NewFlexibleClosePolicy(0)
	}
	return security.NewStrictClosePolicy(0)
}

// Record validates and appends ledger entries. Entries dated inside a
// closed period are rejected (strict policy) or accepted with a warning
// (flexible); either way the closed period's approved totals stay frozen.
// The whole batch is one transaction: a single bad entry aborts everything.
func (s *Service) Record(ctx context.Context, movements []entity.Movement) (*RecordResult, error) {
	if len(movements) == 0 {
		return &RecordResult{}, nil
	}

	result := &RecordResult{}
	for i := range movements {
		if err := s.validateEntry(ctx, &movements[i], i); err != nil {
			return nil, err
		}
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var lateEvents []events.DomainEvent

		for i := range movements {
			m := &movements[i]
			closed, err := s.periodRepo.FindClosedContaining(ctx, m.HotelID, m.OccurredAt)
			if err != nil {
				return fmt.Errorf("check closed period: %w", err)
			}
			if closed == nil {
				continue
			}

			cfg, err := s.config.ConfigFor(ctx, m.HotelID)
			if err != nil {
				return err
			}
			if err := closePolicyFor(cfg).CanRecordClosed(ctx, m.OccurredAt, closed.WindowEnd()); err != nil {
				return err
			}

			// Flexible policy: accepted, but the closed period's totals
			// will not include it. Surface that, loudly.
			warn := apperror.NewPeriodClosed(closed.Label()).
				WithDetail("line_id", m.LineID.String()).
				WithDetail("item_id", m.ItemID.String())
			warn.Severity = apperror.SeverityWarning
			result.Warnings = append(result.Warnings, warn)

			lateEvents = append(lateEvents, events.DomainEvent{
				AggregateType: "Movement",
				AggregateID:   m.LineID,
				EventType:     events.TypeLateMovement,
				Payload: map[string]any{
					"hotel_id":    m.HotelID,
					"item_id":     m.ItemID,
					"kind":        m.Kind,
					"occurred_at": m.OccurredAt,
					"period":      closed.Label(),
				},
			})
		}

		if err := s.repo.CreateMovements(ctx, movements); err != nil {
			return fmt.Errorf("create movements: %w", err)
		}

		if len(lateEvents) > 0 {
			if err := s.publisher.PublishBatch(ctx, lateEvents); err != nil {
				return fmt.Errorf("publish late movement events: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Recorded = len(movements)
	logger.Info(ctx, "recorded ledger entries",
		"count", result.Recorded,
		"warnings", len(result.Warnings),
	)
	return result, nil
}

func (s *Service) validateEntry(ctx context.Context, m *entity.Movement, idx int) error {
	if !m.Kind.IsValid() {
		return apperror.NewValidation(fmt.Sprintf("entry %d: unknown movement kind", idx)).
			WithDetail("kind", string(m.Kind))
	}
	if !m.Source.IsValid() {
		return apperror.NewValidation(fmt.Sprintf("entry %d: unknown entry source", idx)).
			WithDetail("source", string(m.Source))
	}
	if m.Quantity.IsNegative() && !m.Kind.AllowsNegativeQuantity() {
		return apperror.NewValidation(fmt.Sprintf("entry %d: quantity must be positive for %s", idx, m.Kind)).
			WithDetail("quantity", m.Quantity.String())
	}
	if m.OccurredAt.IsZero() {
		return apperror.NewValidation(fmt.Sprintf("entry %d: occurred_at is required", idx))
	}
	if id.IsNil(m.HotelID) || id.IsNil(m.ItemID) {
		return apperror.NewValidation(fmt.Sprintf("entry %d: hotel and item are required", idx))
	}

	exists, err := s.items.Exists(ctx, m.ItemID)
	if err != nil {
		return fmt.Errorf("entry %d: check item: %w", idx, err)
	}
	if !exists {
		return apperror.NewNotFound("item", m.ItemID.String())
	}
	return nil
}

// Aggregate sums ledger entries per item over the period's window
// (end date's full day inclusive). This is a live view: the stocktake
// captures it at approval time, after which the approved lines are the
// authority, never this query.
func (s *Service) Aggregate(ctx context.Context, p *periods.Period) (map[id.ID]Totals, error) {
	rows, err := s.repo.AggregateWindow(ctx, p.HotelID, p.WindowStart(), p.WindowEnd())
	if err != nil {
		return nil, fmt.Errorf("aggregate movements: %w", err)
	}

	totals := make(map[id.ID]Totals, len(rows))
	for _, row := range rows {
		totals[row.ItemID] = row.Totals
	}
	return totals, nil
}

// ListByItem returns an item's ledger entries inside a period window.
func (s *Service) ListByItem(ctx context.Context, p *periods.Period, itemID id.ID, limit, offset int) ([]entity.Movement, error) {
	return s.repo.ListByItem(ctx, p.HotelID, itemID, p.WindowStart(), p.WindowEnd(), limit, offset)
}
