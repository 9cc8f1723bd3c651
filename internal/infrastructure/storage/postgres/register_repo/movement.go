// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/domain/registers/movement"
	"stockbook/internal/infrastructure/storage/postgres"
)

const movementsTable = "reg_movements"

// movementCols is the ledger column set, derived from the Movement
// struct's db tags.
var movementCols = postgres.ExtractDBColumns[entity.Movement]()

// MovementRepo implements movement.Repository.
type MovementRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ movement.Repository = (*MovementRepo)(nil)

// NewMovementRepo creates a new movement ledger repository.
func NewMovementRepo(txm *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateMovements appends ledger entries.
func (r *MovementRepo) CreateMovements(ctx context.Context, movements []entity.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(movements))
		for i := range movements {
			rows = append(rows, movementValues(&movements[i]))
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementCols, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	// Fallback: non-transactional insert (slower). Prefer calling CreateMovements within tx.
	q := r.builder.Insert(movementsTable).Columns(movementCols...)
	for i := range movements {
		q = q.Values(movementValues(&movements[i])...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

// movementValues orders an entry's fields to match movementCols.
func movementValues(m *entity.Movement) []any {
	data := postgres.StructToMap(m)
	vals := make([]any, 0, len(movementCols))
	for _, col := range movementCols {
		vals = append(vals, data[col])
	}
	return vals
}

// AggregateWindow sums entries per item for a hotel over [from, to).
// One grouped query; rows are never loaded individually.
func (r *MovementRepo) AggregateWindow(ctx context.Context, hotelID id.ID, from, to time.Time) ([]movement.ItemTotals, error) {
	sql := `
		SELECT
			item_id,
			COALESCE(SUM(CASE WHEN kind = 'PURCHASE' THEN quantity ELSE 0 END), 0) AS purchases,
			COALESCE(SUM(CASE WHEN kind = 'SALE' THEN quantity ELSE 0 END), 0) AS sales,
			COALESCE(SUM(CASE WHEN kind = 'WASTE' THEN quantity ELSE 0 END), 0) AS waste,
			COALESCE(SUM(CASE WHEN kind = 'TRANSFER_IN' THEN quantity ELSE 0 END), 0) AS transfers_in,
			COALESCE(SUM(CASE WHEN kind = 'TRANSFER_OUT' THEN quantity ELSE 0 END), 0) AS transfers_out,
			COALESCE(SUM(CASE WHEN kind = 'ADJUSTMENT' THEN quantity ELSE 0 END), 0) AS adjustments
		FROM reg_movements
		WHERE hotel_id = $1
		  AND occurred_at >= $2
		  AND occurred_at < $3
		GROUP BY item_id
		ORDER BY item_id
	`

	var totals []movement.ItemTotals
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &totals, sql, hotelID, from, to); err != nil {
		return nil, fmt.Errorf("aggregate window: %w", err)
	}

	return totals, nil
}

// ListByItem returns an item's entries over [from, to) ordered by occurred_at.
func (r *MovementRepo) ListByItem(ctx context.Context, hotelID, itemID id.ID, from, to time.Time, limit, offset int) ([]entity.Movement, error) {
	q := r.builder.Select(movementCols...).
		From(movementsTable).
		Where(squirrel.Eq{"hotel_id": hotelID}).
		Where(squirrel.Eq{"item_id": itemID}).
		Where(squirrel.GtOrEq{"occurred_at": from}).
		Where(squirrel.Lt{"occurred_at": to}).
		OrderBy("occurred_at", "created_at")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []entity.Movement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	return entries, nil
}
