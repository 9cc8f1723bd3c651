// Package snapshot provides the closing-balance register. One row per
// (item, period), materialized by stocktake approval, immutable while the
// period stays closed, and the sole source of the next period's openings.
package snapshot

import (
	"context"
	"time"

	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
)

// Repository defines the interface for snapshot persistence.
type Repository interface {
	// ReplaceForPeriod deletes the period's snapshots and bulk-inserts the
	// replacement set in the caller's transaction. Approval goes through
	// here so a re-approval never leaves stale rows behind.
	ReplaceForPeriod(ctx context.Context, periodID id.ID, snapshots []entity.Snapshot) error

	// DeleteForPeriod removes the period's snapshots (reopen path).
	DeleteForPeriod(ctx context.Context, periodID id.ID) error

	// GetForPeriod returns every snapshot of a period keyed by item.
	GetForPeriod(ctx context.Context, periodID id.ID) (map[id.ID]entity.Snapshot, error)

	// GetByItemPeriod returns one snapshot, or nil when the item has none
	// for that period.
	GetByItemPeriod(ctx context.Context, itemID, periodID id.ID) (*entity.Snapshot, error)

	// HistoryForItem returns an item's closing balances across periods
	// ordered by period start, for historical-comparison tooling.
	HistoryForItem(ctx context.Context, hotelID, itemID id.ID, from, to time.Time) ([]entity.Snapshot, error)
}
