// Package period_repo provides the PostgreSQL implementation of the
// period repository.
package period_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/domain/periods"
	"stockbook/internal/infrastructure/storage/postgres"
)

const periodsTable = "periods"

var periodCols = postgres.ExtractDBColumns[periods.Period]()

// PeriodRepo implements periods.Repository.
type PeriodRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ periods.Repository = (*PeriodRepo)(nil)

// NewPeriodRepo creates a new period repository.
func NewPeriodRepo(txm *postgres.TxManager) *PeriodRepo {
	return &PeriodRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PeriodRepo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

func (r *PeriodRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(periodCols...).From(periodsTable)
}

// Create inserts a new period.
func (r *PeriodRepo) Create(ctx context.Context, p *periods.Period) error {
	data := postgres.StructToMap(p)

	q := r.builder.Insert(periodsTable).SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert period: %w", err)
	}

	return nil
}

// GetByID retrieves a period by ID.
func (r *PeriodRepo) GetByID(ctx context.Context, periodID id.ID) (*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": periodID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p periods.Period
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("period", periodID.String())
		}
		return nil, fmt.Errorf("get period: %w", err)
	}

	return &p, nil
}

// GetForUpdate retrieves a period with a row lock. Close and reopen
// serialize on this lock.
func (r *PeriodRepo) GetForUpdate(ctx context.Context, periodID id.ID) (*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": periodID}).
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p periods.Period
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("period", periodID.String())
		}
		return nil, fmt.Errorf("get period for update: %w", err)
	}

	return &p, nil
}

// Update modifies an existing period with optimistic locking.
func (r *PeriodRepo) Update(ctx context.Context, p *periods.Period) error {
	data := postgres.StructToMap(p)

	filteredData := make(map[string]any, len(data))
	for col, val := range data {
		switch col {
		case "id", "version", "created_at", "created_by", "updated_at":
			continue
		}
		filteredData[col] = val
	}

	q := r.builder.Update(periodsTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": p.ID}).
		Where(squirrel.Eq{"version": p.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update period: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("period", p.ID)
	}

	return nil
}

// FindOverlapping returns same-type periods of the hotel intersecting the
// day-inclusive range.
func (r *PeriodRepo) FindOverlapping(ctx context.Context, hotelID id.ID, periodType periods.PeriodType, start, end time.Time) ([]*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"hotel_id": hotelID}).
		Where(squirrel.Eq{"period_type": periodType}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.LtOrEq{"start_date": end}).
		Where(squirrel.GtOrEq{"end_date": start}).
		OrderBy("start_date")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var found []*periods.Period
	if err := pgxscan.Select(ctx, r.querier(ctx), &found, sql, args...); err != nil {
		return nil, fmt.Errorf("find overlapping: %w", err)
	}

	return found, nil
}

// FindByDateRange resolves the period matching an exact (hotel, start, end)
// tuple. Returns nil when none exists.
func (r *PeriodRepo) FindByDateRange(ctx context.Context, hotelID id.ID, start, end time.Time) (*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"hotel_id": hotelID}).
		Where(squirrel.Eq{"start_date": start}).
		Where(squirrel.Eq{"end_date": end}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p periods.Period
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by date range: %w", err)
	}

	return &p, nil
}

// FindPrior returns the latest same-type period of the hotel ending before
// this one, or nil when none exists.
func (r *PeriodRepo) FindPrior(ctx context.Context, p *periods.Period) (*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"hotel_id": p.HotelID}).
		Where(squirrel.Eq{"period_type": p.PeriodType}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.Lt{"end_date": p.StartDate}).
		OrderBy("end_date DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var prior periods.Period
	if err := pgxscan.Get(ctx, r.querier(ctx), &prior, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find prior: %w", err)
	}

	return &prior, nil
}

// FindLaterClosed returns the earliest closed same-type period of the hotel
// starting after this one, or nil.
func (r *PeriodRepo) FindLaterClosed(ctx context.Context, p *periods.Period) (*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"hotel_id": p.HotelID}).
		Where(squirrel.Eq{"period_type": p.PeriodType}).
		Where(squirrel.Eq{"is_closed": true}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.Gt{"start_date": p.EndDate}).
		OrderBy("start_date ASC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var later periods.Period
	if err := pgxscan.Get(ctx, r.querier(ctx), &later, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find later closed: %w", err)
	}

	return &later, nil
}

// FindClosedContaining returns the closed period of the hotel whose window
// contains the timestamp, or nil. The end date's full day counts, so the
// upper bound is end_date plus one day, exclusive.
func (r *PeriodRepo) FindClosedContaining(ctx context.Context, hotelID id.ID, t time.Time) (*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"hotel_id": hotelID}).
		Where(squirrel.Eq{"is_closed": true}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.LtOrEq{"start_date": t}).
		Where(squirrel.Expr("end_date + INTERVAL '1 day' > ?", t)).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p periods.Period
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find closed containing: %w", err)
	}

	return &p, nil
}

// ListByHotel returns the hotel's periods ordered by start date descending.
func (r *PeriodRepo) ListByHotel(ctx context.Context, hotelID id.ID, limit, offset int) ([]*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"hotel_id": hotelID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("start_date DESC")

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

	var found []*periods.Period
	if err := pgxscan.Select(ctx, r.querier(ctx), &found, sql, args...); err != nil {
		return nil, fmt.Errorf("list by hotel: %w", err)
	}

	return found, nil
}
