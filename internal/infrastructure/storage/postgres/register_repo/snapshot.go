package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/domain/registers/snapshot"
	"stockbook/internal/infrastructure/storage/postgres"
)

const snapshotsTable = "reg_snapshots"

var snapshotCols = postgres.ExtractDBColumns[entity.Snapshot]()

// SnapshotRepo implements snapshot.Repository.
type SnapshotRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ snapshot.Repository = (*SnapshotRepo)(nil)

// NewSnapshotRepo creates a new snapshot register repository.
func NewSnapshotRepo(txm *postgres.TxManager) *SnapshotRepo {
	return &SnapshotRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ReplaceForPeriod deletes the period's snapshots and bulk-inserts the
// replacement set. Runs in the caller's transaction so a re-approval never
// leaves stale rows behind.
func (r *SnapshotRepo) ReplaceForPeriod(ctx context.Context, periodID id.ID, snapshots []entity.Snapshot) error {
	if err := r.DeleteForPeriod(ctx, periodID); err != nil {
		return err
	}

	if len(snapshots) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(snapshots))
		for i := range snapshots {
			rows = append(rows, snapshotValues(&snapshots[i]))
		}
		if _, err := inserter.CopyFromSlice(ctx, snapshotsTable, snapshotCols, rows); err != nil {
			return fmt.Errorf("copy snapshots: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(snapshotsTable).Columns(snapshotCols...)
	for i := range snapshots {
		q = q.Values(snapshotValues(&snapshots[i])...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("insert snapshots: %w", err)
	}

	return nil
}

func snapshotValues(s *entity.Snapshot) []any {
	data := postgres.StructToMap(s)
	vals := make([]any, 0, len(snapshotCols))
	for _, col := range snapshotCols {
		vals = append(vals, data[col])
	}
	return vals
}

// DeleteForPeriod removes the period's snapshots (reopen path).
func (r *SnapshotRepo) DeleteForPeriod(ctx context.Context, periodID id.ID) error {
	q := r.builder.Delete(snapshotsTable).
		Where(squirrel.Eq{"period_id": periodID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}

	return nil
}

// GetForPeriod returns every snapshot of a period keyed by item.
func (r *SnapshotRepo) GetForPeriod(ctx context.Context, periodID id.ID) (map[id.ID]entity.Snapshot, error) {
	q := r.builder.Select(snapshotCols...).
		From(snapshotsTable).
		Where(squirrel.Eq{"period_id": periodID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []entity.Snapshot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}

	byItem := make(map[id.ID]entity.Snapshot, len(rows))
	for _, s := range rows {
		byItem[s.ItemID] = s
	}

	return byItem, nil
}

// GetByItemPeriod returns one snapshot, or nil when the item has none for
// that period.
func (r *SnapshotRepo) GetByItemPeriod(ctx context.Context, itemID, periodID id.ID) (*entity.Snapshot, error) {
	q := r.builder.Select(snapshotCols...).
		From(snapshotsTable).
		Where(squirrel.Eq{"item_id": itemID}).
		Where(squirrel.Eq{"period_id": periodID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s entity.Snapshot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	return &s, nil
}

// HistoryForItem returns an item's closing balances across periods ordered
// by period start. Joins the period table because snapshots carry no dates
// of their own.
func (r *SnapshotRepo) HistoryForItem(ctx context.Context, hotelID, itemID id.ID, from, to time.Time) ([]entity.Snapshot, error) {
	cols := make([]string, 0, len(snapshotCols))
	for _, c := range snapshotCols {
		cols = append(cols, "s."+c)
	}

	q := r.builder.Select(cols...).
		From(snapshotsTable + " s").
		Join("periods p ON p.id = s.period_id").
		Where(squirrel.Eq{"s.hotel_id": hotelID}).
		Where(squirrel.Eq{"s.item_id": itemID}).
		Where(squirrel.GtOrEq{"p.start_date": from}).
		Where(squirrel.LtOrEq{"p.end_date": to}).
		OrderBy("p.start_date")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []entity.Snapshot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}

	return rows, nil
}
