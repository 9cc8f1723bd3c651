// Package movement provides the stock movement ledger: append-only
// purchase/sale/waste/transfer/adjustment entries aggregated per item per
// period.
package movement

import (
	"context"
	"time"

	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// Totals is the per-item aggregation of ledger entries over one period
// window. All figures are in the item's normalized servings unit.
type Totals struct {
	Purchases    types.Quantity `db:"purchases" json:"purchases"`
	Sales        types.Quantity `db:"sales" json:"sales"`
	Waste        types.Quantity `db:"waste" json:"waste"`
	TransfersIn  types.Quantity `db:"transfers_in" json:"transfersIn"`
	TransfersOut types.Quantity `db:"transfers_out" json:"transfersOut"`
	Adjustments  types.Quantity `db:"adjustments" json:"adjustments"`
}

// NetDelta is the totals' contribution to expected stock:
// purchases + transfers in - sales - waste - transfers out + adjustments.
func (t Totals) NetDelta() types.Quantity {
	return t.Purchases.
		Add(t.TransfersIn).
		Sub(t.Sales).
		Sub(t.Waste).
		Sub(t.TransfersOut).
		Add(t.Adjustments)
}

// ItemTotals pairs an item with its period totals.
type ItemTotals struct {
	ItemID id.ID `db:"item_id" json:"itemId"`
	Totals
}

// Repository defines the interface for ledger persistence.
type Repository interface {
	// CreateMovements appends ledger entries. Implementations use the COPY
	// protocol for large batches.
	CreateMovements(ctx context.Context, movements []entity.Movement) error

	// AggregateWindow sums entries per item for a hotel over
	// [from, to) - one grouped query, never loaded row by row.
	AggregateWindow(ctx context.Context, hotelID id.ID, from, to time.Time) ([]ItemTotals, error)

	// ListByItem returns an item's entries over [from, to) ordered by
	// occurred_at, for drill-down views.
	ListByItem(ctx context.Context, hotelID, itemID id.ID, from, to time.Time, limit, offset int) ([]entity.Movement, error)
}
