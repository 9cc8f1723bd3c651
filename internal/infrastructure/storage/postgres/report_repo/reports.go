// Package report_repo provides PostgreSQL implementations for report queries.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/domain/reports"
	"stockbook/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository. All queries read approved
// stocktake lines and the snapshot register; nothing here touches the live
// ledger, so closed-period figures never shift under a report.
type ReportRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// stocktakeHeader is the slice of the stocktake header reports need.
type stocktakeHeader struct {
	ID                 id.ID           `db:"id"`
	Number             string          `db:"number"`
	Status             string          `db:"status"`
	TotalExpectedValue decimal.Decimal `db:"total_expected_value"`
	TotalCountedValue  decimal.Decimal `db:"total_counted_value"`
	TotalVarianceValue decimal.Decimal `db:"total_variance_value"`
	IsClosed           bool            `db:"is_closed"`
}

// getHeader resolves the stocktake for a period's canonical
// (hotel, start, end) tuple, with the period's closed flag joined in.
func (r *ReportRepo) getHeader(ctx context.Context, hotelID id.ID, filter reports.PeriodSummaryFilter) (*stocktakeHeader, error) {
	sql := `
		SELECT d.id, d.number, d.status,
		       d.total_expected_value, d.total_counted_value, d.total_variance_value,
		       COALESCE(p.is_closed, false) AS is_closed
		FROM doc_stocktakes d
		LEFT JOIN periods p
		  ON p.hotel_id = d.hotel_id
		 AND p.start_date = d.period_start
		 AND p.end_date = d.period_end
		 AND p.deletion_mark = false
		WHERE d.hotel_id = $1
		  AND d.period_start = $2
		  AND d.period_end = $3
		  AND d.deletion_mark = false
		LIMIT 1
	`

	var header stocktakeHeader
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &header, sql, hotelID, filter.PeriodStart, filter.PeriodEnd); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stocktake",
				fmt.Sprintf("%s %s..%s", hotelID, filter.PeriodStart.Format("2006-01-02"), filter.PeriodEnd.Format("2006-01-02")))
		}
		return nil, fmt.Errorf("resolve stocktake: %w", err)
	}

	return &header, nil
}

// GetPeriodSummary generates the period-end financial rollup.
func (r *ReportRepo) GetPeriodSummary(ctx context.Context, filter reports.PeriodSummaryFilter) (*reports.PeriodSummary, error) {
	header, err := r.getHeader(ctx, filter.HotelID, filter)
	if err != nil {
		return nil, err
	}

	categorySQL := `
		SELECT l.category,
		       COUNT(*) AS line_count,
		       COALESCE(SUM(l.expected_value), 0) AS expected_value,
		       COALESCE(SUM(l.counted_value), 0) AS counted_value,
		       COALESCE(SUM(l.variance_value), 0) AS variance_value
		FROM doc_stocktake_lines l
		WHERE l.document_id = $1
		GROUP BY l.category
		ORDER BY l.category
	`

	var categories []reports.CategorySummary
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &categories, categorySQL, header.ID); err != nil {
		return nil, fmt.Errorf("category rollup: %w", err)
	}

	return &reports.PeriodSummary{
		HotelID:            filter.HotelID,
		PeriodStart:        filter.PeriodStart,
		PeriodEnd:          filter.PeriodEnd,
		StocktakeNumber:    header.Number,
		Status:             header.Status,
		IsClosed:           header.IsClosed,
		TotalExpectedValue: header.TotalExpectedValue,
		TotalCountedValue:  header.TotalCountedValue,
		TotalVarianceValue: header.TotalVarianceValue,
		Categories:         categories,
	}, nil
}

// GetVarianceReport generates the per-item variance drill-down for a period.
func (r *ReportRepo) GetVarianceReport(ctx context.Context, filter reports.VarianceReportFilter) (*reports.VarianceReport, error) {
	header, err := r.getHeader(ctx, filter.HotelID, reports.PeriodSummaryFilter{
		HotelID:     filter.HotelID,
		PeriodStart: filter.PeriodStart,
		PeriodEnd:   filter.PeriodEnd,
	})
	if err != nil {
		return nil, err
	}

	conditions := "l.document_id = $1"
	args := []any{header.ID}
	argIndex := 2

	if filter.Category != nil {
		conditions += fmt.Sprintf(" AND l.category = $%d", argIndex)
		args = append(args, *filter.Category)
		argIndex++
	}

	if filter.MinAbsVarianceValue != nil {
		conditions += fmt.Sprintf(" AND ABS(l.variance_value) >= $%d", argIndex)
		args = append(args, *filter.MinAbsVarianceValue)
		argIndex++
	}

	// Totals over the filtered set, before pagination
	totalsSQL := fmt.Sprintf(`
		SELECT COUNT(*) AS total_items,
		       COALESCE(SUM(l.variance_value), 0) AS total_variance_value
		FROM doc_stocktake_lines l
		WHERE %s
	`, conditions)

	var totalItems int
	var totalVariance decimal.Decimal
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, totalsSQL, args...).Scan(&totalItems, &totalVariance); err != nil {
		return nil, fmt.Errorf("variance totals: %w", err)
	}

	// Worst variances first: sort on absolute magnitude of the chosen column.
	sortCol := "variance_value"
	if filter.SortBy == "variance_qty" {
		sortCol = "variance_qty"
	}

	itemsSQL := fmt.Sprintf(`
		SELECT l.item_id, l.item_sku, l.item_name, l.category, l.subcategory,
		       l.opening_qty, l.expected_qty, l.counted_qty, l.variance_qty,
		       l.variance_value, l.opening_missing_snapshot
		FROM doc_stocktake_lines l
		WHERE %s
		ORDER BY ABS(l.%s) DESC, l.item_sku
		LIMIT $%d OFFSET $%d
	`, conditions, sortCol, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	var items []reports.VarianceReportItem
	if err := pgxscan.Select(ctx, querier, &items, itemsSQL, args...); err != nil {
		return nil, fmt.Errorf("variance report: %w", err)
	}

	return &reports.VarianceReport{
		HotelID:            filter.HotelID,
		PeriodStart:        filter.PeriodStart,
		PeriodEnd:          filter.PeriodEnd,
		Items:              items,
		TotalItems:         totalItems,
		TotalVarianceValue: totalVariance,
	}, nil
}

// GetItemHistory generates an item's closing-balance and variance series
// across periods. The most recent periods win when the limit truncates;
// points are returned oldest first.
func (r *ReportRepo) GetItemHistory(ctx context.Context, filter reports.ItemHistoryFilter) (*reports.ItemHistory, error) {
	itemSQL := `
		SELECT code AS item_sku, name AS item_name
		FROM cat_items
		WHERE id = $1
	`

	var itemHeader struct {
		ItemSKU  string `db:"item_sku"`
		ItemName string `db:"item_name"`
	}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &itemHeader, itemSQL, filter.ItemID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item", filter.ItemID.String())
		}
		return nil, fmt.Errorf("resolve item: %w", err)
	}

	conditions := "s.hotel_id = $1 AND s.item_id = $2"
	args := []any{filter.HotelID, filter.ItemID}
	argIndex := 3

	if !filter.FromDate.IsZero() {
		conditions += fmt.Sprintf(" AND p.start_date >= $%d", argIndex)
		args = append(args, filter.FromDate)
		argIndex++
	}
	if !filter.ToDate.IsZero() {
		conditions += fmt.Sprintf(" AND p.end_date <= $%d", argIndex)
		args = append(args, filter.ToDate)
		argIndex++
	}

	historySQL := fmt.Sprintf(`
		SELECT p.start_date AS period_start,
		       p.end_date AS period_end,
		       s.closing_full_units, s.closing_partial_units,
		       s.closing_servings, s.closing_physical, s.closing_value,
		       COALESCE(l.variance_qty, 0) AS variance_qty,
		       COALESCE(l.variance_value, 0) AS variance_value
		FROM reg_snapshots s
		JOIN periods p ON p.id = s.period_id
		LEFT JOIN doc_stocktake_lines l
		  ON l.document_id = s.recorder_id AND l.item_id = s.item_id
		WHERE %s
		ORDER BY p.start_date DESC
		LIMIT $%d
	`, conditions, argIndex)
	args = append(args, filter.Limit)

	var points []reports.ItemHistoryPoint
	if err := pgxscan.Select(ctx, querier, &points, historySQL, args...); err != nil {
		return nil, fmt.Errorf("item history: %w", err)
	}

	// Reverse to chronological order
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}

	return &reports.ItemHistory{
		ItemID:   filter.ItemID,
		ItemSKU:  itemHeader.ItemSKU,
		ItemName: itemHeader.ItemName,
		Points:   points,
	}, nil
}
