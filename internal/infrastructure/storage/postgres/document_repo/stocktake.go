package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/domain"
	"stockbook/internal/domain/documents/stocktake"
	"stockbook/internal/infrastructure/storage/postgres"
)

const (
	stocktakesTable     = "doc_stocktakes"
	stocktakeLinesTable = "doc_stocktake_lines"
)

// lineCols is the column set of doc_stocktake_lines, derived from the Line
// struct's db tags. document_id is handled separately (not a Line field).
var lineCols = postgres.ExtractDBColumns[stocktake.Line]()

// StocktakeRepo implements stocktake.Repository.
type StocktakeRepo struct {
	*BaseDocumentRepo[*stocktake.Stocktake]
}

var _ stocktake.Repository = (*StocktakeRepo)(nil)

// NewStocktakeRepo creates a new stocktake repository.
func NewStocktakeRepo(txm *postgres.TxManager) *StocktakeRepo {
	return &StocktakeRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*stocktake.Stocktake](
			txm,
			stocktakesTable,
			postgres.ExtractDBColumns[stocktake.Stocktake](),
			func() *stocktake.Stocktake { return &stocktake.Stocktake{} },
		),
	}
}

// FindByDateRange resolves the hotel's stocktake for an exact period date
// range. Returns nil when none exists.
func (r *StocktakeRepo) FindByDateRange(ctx context.Context, hotelID id.ID, periodStart, periodEnd time.Time) (*stocktake.Stocktake, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"hotel_id": hotelID}).
		Where(squirrel.Eq{"period_start": periodStart}).
		Where(squirrel.Eq{"period_end": periodEnd}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	doc := &stocktake.Stocktake{}
	if err := pgxscan.Get(ctx, r.querier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by date range: %w", err)
	}

	return doc, nil
}

// ExistsDraftAfter reports whether the hotel has a draft stocktake whose
// period starts after the given date. Used to block reopening a period when
// a later draft already builds on its snapshots.
func (r *StocktakeRepo) ExistsDraftAfter(ctx context.Context, hotelID id.ID, after time.Time) (bool, error) {
	q := r.Builder().
		Select("1").
		From(stocktakesTable).
		Where(squirrel.Eq{"hotel_id": hotelID}).
		Where(squirrel.Eq{"status": entity.StatusDraft}).
		Where(squirrel.Gt{"period_start": after}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists int
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&exists)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists draft after: %w", err)
	}

	return true, nil
}

// GetLines retrieves document lines ordered by line number.
func (r *StocktakeRepo) GetLines(ctx context.Context, docID id.ID) ([]stocktake.Line, error) {
	q := r.Builder().
		Select(lineCols...).
		From(stocktakeLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []stocktake.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces document lines (delete + bulk insert).
func (r *StocktakeRepo) SaveLines(ctx context.Context, docID id.ID, lines []stocktake.Line) error {
	querier := r.querier(ctx)

	deleteSQL := "DELETE FROM " + stocktakeLinesTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	cols := append([]string{"document_id"}, lineCols...)
	q := r.Builder().
		Insert(stocktakeLinesTable).
		Columns(cols...)

	for i := range lines {
		data := postgres.StructToMap(&lines[i])
		vals := make([]any, 0, len(cols))
		vals = append(vals, docID)
		for _, col := range lineCols {
			vals = append(vals, data[col])
		}
		q = q.Values(vals...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

// List retrieves stocktakes with filtering and pagination.
func (r *StocktakeRepo) List(ctx context.Context, filter stocktake.ListFilter) (domain.ListResult[*stocktake.Stocktake], error) {
	result := domain.ListResult[*stocktake.Stocktake]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if filter.HotelID != nil {
		q = q.Where(squirrel.Eq{"hotel_id": *filter.HotelID})
	}

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"period_start": *filter.DateFrom})
	}

	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"period_end": *filter.DateTo})
	}

	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}

	return result, nil
}
