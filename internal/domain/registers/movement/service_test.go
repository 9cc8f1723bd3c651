package movement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/tx"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/catalogs/hotel"
	"stockbook/internal/domain/events"
	"stockbook/internal/domain/periods"
)

type memLedger struct {
	entries []entity.Movement
}

func (m *memLedger) CreateMovements(ctx context.Context, movements []entity.Movement) error {
	m.entries = append(m.entries, movements...)
	return nil
}

func (m *memLedger) AggregateWindow(ctx context.Context, hotelID id.ID, from, to time.Time) ([]ItemTotals, error) {
	byItem := make(map[id.ID]Totals)
	for _, e := range m.entries {
		if e.HotelID != hotelID || e.OccurredAt.Before(from) || !e.OccurredAt.Before(to) {
			continue
		}
		t := byItem[e.ItemID]
		switch e.Kind {
		case entity.MovementPurchase:
			t.Purchases = t.Purchases.Add(e.Quantity)
		case entity.MovementSale:
			t.Sales = t.Sales.Add(e.Quantity)
		case entity.MovementWaste:
			t.Waste = t.Waste.Add(e.Quantity)
		case entity.MovementTransferIn:
			t.TransfersIn = t.TransfersIn.Add(e.Quantity)
		case entity.MovementTransferOut:
			t.TransfersOut = t.TransfersOut.Add(e.Quantity)
		case entity.MovementAdjustment:
			t.Adjustments = t.Adjustments.Add(e.Quantity)
		}
		byItem[e.ItemID] = t
	}

	out := make([]ItemTotals, 0, len(byItem))
	for itemID, t := range byItem {
		out = append(out, ItemTotals{ItemID: itemID, Totals: t})
	}
	return out, nil
}

func (m *memLedger) ListByItem(ctx context.Context, hotelID, itemID id.ID, from, to time.Time, limit, offset int) ([]entity.Movement, error) {
	var out []entity.Movement
	for _, e := range m.entries {
		if e.HotelID == hotelID && e.ItemID == itemID && !e.OccurredAt.Before(from) && e.OccurredAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type allItems struct{}

func (allItems) Exists(ctx context.Context, itemID id.ID) (bool, error) { return true, nil }

type noItems struct{}

func (noItems) Exists(ctx context.Context, itemID id.ID) (bool, error) { return false, nil }

// closedPeriods answers FindClosedContaining from a fixed list and stubs
// the rest of the period repository.
type closedPeriods struct {
	closed []*periods.Period
}

func (r *closedPeriods) Create(ctx context.Context, p *periods.Period) error { return nil }
func (r *closedPeriods) GetByID(ctx context.Context, periodID id.ID) (*periods.Period, error) {
	return nil, apperror.NewNotFound("period", periodID.String())
}
func (r *closedPeriods) GetForUpdate(ctx context.Context, periodID id.ID) (*periods.Period, error) {
	return r.GetByID(ctx, periodID)
}
func (r *closedPeriods) Update(ctx context.Context, p *periods.Period) error { return nil }
func (r *closedPeriods) FindOverlapping(ctx context.Context, hotelID id.ID, periodType periods.PeriodType, start, end time.Time) ([]*periods.Period, error) {
	return nil, nil
}
func (r *closedPeriods) FindByDateRange(ctx context.Context, hotelID id.ID, start, end time.Time) (*periods.Period, error) {
	return nil, nil
}
func (r *closedPeriods) FindPrior(ctx context.Context, p *periods.Period) (*periods.Period, error) {
	return nil, nil
}
func (r *closedPeriods) FindLaterClosed(ctx context.Context, p *periods.Period) (*periods.Period, error) {
	return nil, nil
}
func (r *closedPeriods) FindClosedContaining(ctx context.Context, hotelID id.ID, t time.Time) (*periods.Period, error) {
	for _, p := range r.closed {
		if p.HotelID == hotelID && p.IsClosed && p.ContainsTime(t) {
			return p, nil
		}
	}
	return nil, nil
}
func (r *closedPeriods) ListByHotel(ctx context.Context, hotelID id.ID, limit, offset int) ([]*periods.Period, error) {
	return nil, nil
}

type staticConfig struct {
	cfg hotel.Config
}

func (c *staticConfig) ConfigFor(ctx context.Context, hotelID id.ID) (hotel.Config, error) {
	return c.cfg, nil
}

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func closedAugust(hotelID id.ID) *periods.Period {
	p := periods.NewPeriod(hotelID, day(2026, 8, 1), day(2026, 8, 31), periods.TypeMonthly)
	p.MarkClosed("boss", day(2026, 9, 1))
	return p
}

func newLedgerService(repo Repository, items ItemChecker, periodRepo periods.Repository, mode hotel.ClosePolicyMode) *Service {
	cfg := hotel.DefaultConfig()
	cfg.ClosePolicy = mode
	return NewService(repo, items, periodRepo, &staticConfig{cfg: cfg}, &tx.MockManager{}, events.NopPublisher{})
}

func TestRecord_AppendsOpenPeriodEntries(t *testing.T) {
	repo := &memLedger{}
	hotelID := id.New()
	svc := newLedgerService(repo, allItems{}, &closedPeriods{}, hotel.ClosePolicyStrict)

	itemID := id.New()
	res, err := svc.Record(context.Background(), []entity.Movement{
		entity.NewMovement(hotelID, itemID, entity.MovementPurchase, types.MustQuantity("100"), day(2026, 8, 5), entity.SourceImport),
		entity.NewMovement(hotelID, itemID, entity.MovementSale, types.MustQuantity("40"), day(2026, 8, 20), entity.SourcePOS),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recorded)
	assert.Empty(t, res.Warnings)
	assert.Len(t, repo.entries, 2)
}

func TestRecord_StrictPolicyRejectsClosedPeriod(t *testing.T) {
	repo := &memLedger{}
	hotelID := id.New()
	svc := newLedgerService(repo, allItems{},
		&closedPeriods{closed: []*periods.Period{closedAugust(hotelID)}},
		hotel.ClosePolicyStrict)

	_, err := svc.Record(context.Background(), []entity.Movement{
		entity.NewMovement(hotelID, id.New(), entity.MovementSale, types.MustQuantity("5"), day(2026, 8, 15), entity.SourcePOS),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsPeriodClosed(err))
	assert.Empty(t, repo.entries, "rejected batch must not be recorded")
}

func TestRecord_FlexiblePolicyAcceptsClosedPeriodWithWarning(t *testing.T) {
	repo := &memLedger{}
	hotelID := id.New()
	svc := newLedgerService(repo, allItems{},
		&closedPeriods{closed: []*periods.Period{closedAugust(hotelID)}},
		hotel.ClosePolicyFlexible)

	res, err := svc.Record(context.Background(), []entity.Movement{
		entity.NewMovement(hotelID, id.New(), entity.MovementSale, types.MustQuantity("5"), day(2026, 8, 15), entity.SourcePOS),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Recorded)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, apperror.CodePeriodClosed, res.Warnings[0].Code)
	assert.Len(t, repo.entries, 1)
}

func TestRecord_NegativeQuantityOnlyForAdjustments(t *testing.T) {
	repo := &memLedger{}
	hotelID := id.New()
	svc := newLedgerService(repo, allItems{}, &closedPeriods{}, hotel.ClosePolicyStrict)

	_, err := svc.Record(context.Background(), []entity.Movement{
		entity.NewMovement(hotelID, id.New(), entity.MovementSale, types.MustQuantity("-5"), day(2026, 8, 15), entity.SourcePOS),
	})
	require.Error(t, err)

	res, err := svc.Record(context.Background(), []entity.Movement{
		entity.NewMovement(hotelID, id.New(), entity.MovementAdjustment, types.MustQuantity("-5"), day(2026, 8, 15), entity.SourceManual),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Recorded)
}

func TestRecord_SingleBadEntryAbortsBatch(t *testing.T) {
	repo := &memLedger{}
	hotelID := id.New()
	svc := newLedgerService(repo, allItems{}, &closedPeriods{}, hotel.ClosePolicyStrict)

	batch := []entity.Movement{
		entity.NewMovement(hotelID, id.New(), entity.MovementPurchase, types.MustQuantity("10"), day(2026, 8, 5), entity.SourceImport),
		entity.NewMovement(hotelID, id.New(), entity.MovementKind("THEFT"), types.MustQuantity("1"), day(2026, 8, 5), entity.SourceImport),
	}
	_, err := svc.Record(context.Background(), batch)
	require.Error(t, err)
	assert.Empty(t, repo.entries)
}

func TestRecord_UnknownItemRejected(t *testing.T) {
	repo := &memLedger{}
	svc := newLedgerService(repo, noItems{}, &closedPeriods{}, hotel.ClosePolicyStrict)

	_, err := svc.Record(context.Background(), []entity.Movement{
		entity.NewMovement(id.New(), id.New(), entity.MovementPurchase, types.MustQuantity("10"), day(2026, 8, 5), entity.SourceImport),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestAggregate_HonorsPeriodWindow(t *testing.T) {
	repo := &memLedger{}
	hotelID := id.New()
	itemID := id.New()
	svc := newLedgerService(repo, allItems{}, &closedPeriods{}, hotel.ClosePolicyStrict)

	p := periods.NewPeriod(hotelID, day(2026, 8, 1), day(2026, 8, 31), periods.TypeMonthly)

	_, err := svc.Record(context.Background(), []entity.Movement{
		entity.NewMovement(hotelID, itemID, entity.MovementPurchase, types.MustQuantity("100"), day(2026, 8, 1), entity.SourceImport),
		// the end date's full day counts
		entity.NewMovement(hotelID, itemID, entity.MovementSale, types.MustQuantity("30"), day(2026, 8, 31).Add(23*time.Hour), entity.SourcePOS),
		// first moment after the window does not
		entity.NewMovement(hotelID, itemID, entity.MovementSale, types.MustQuantity("999"), day(2026, 9, 1), entity.SourcePOS),
	})
	require.NoError(t, err)

	totals, err := svc.Aggregate(context.Background(), p)
	require.NoError(t, err)
	require.Contains(t, totals, itemID)
	assert.True(t, totals[itemID].Purchases.Equal(types.MustQuantity("100")))
	assert.True(t, totals[itemID].Sales.Equal(types.MustQuantity("30")))
}
