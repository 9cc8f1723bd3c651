package snapshot

import (
	"context"
	"fmt"
	"time"

	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/pkg/logger"
)

// Service provides read and materialization operations for the snapshot
// register. Mutations only happen on the approve/reopen paths, always
// inside the caller's transaction; there is deliberately no free-form
// update here.
type Service struct {
	repo Repository
}

// NewService creates a snapshot register service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Materialize replaces a period's snapshots with the given set.
// Called by stocktake approval inside its transaction.
func (s *Service) Materialize(ctx context.Context, periodID id.ID, snapshots []entity.Snapshot) error {
	if err := s.repo.ReplaceForPeriod(ctx, periodID, snapshots); err != nil {
		return fmt.Errorf("materialize snapshots: %w", err)
	}
	logger.Info(ctx, "materialized closing snapshots",
		"period_id", periodID,
		"count", len(snapshots),
	)
	return nil
}

// Clear removes a period's snapshots. Called by the reopen path inside
// its transaction so stale closing balances never leak into the next
// period's openings.
func (s *Service) Clear(ctx context.Context, periodID id.ID) error {
	if err := s.repo.DeleteForPeriod(ctx, periodID); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	logger.Info(ctx, "cleared closing snapshots", "period_id", periodID)
	return nil
}

// GetForPeriod returns every snapshot of a period keyed by item.
func (s *Service) GetForPeriod(ctx context.Context, periodID id.ID) (map[id.ID]entity.Snapshot, error) {
	return s.repo.GetForPeriod(ctx, periodID)
}

// GetByItemPeriod returns one item's snapshot for a period, nil when absent.
func (s *Service) GetByItemPeriod(ctx context.Context, itemID, periodID id.ID) (*entity.Snapshot, error) {
	return s.repo.GetByItemPeriod(ctx, itemID, periodID)
}

// HistoryForItem returns an item's closing-balance series across periods.
func (s *Service) HistoryForItem(ctx context.Context, hotelID, itemID id.ID, from, to time.Time) ([]entity.Snapshot, error) {
	return s.repo.HistoryForItem(ctx, hotelID, itemID, from, to)
}
