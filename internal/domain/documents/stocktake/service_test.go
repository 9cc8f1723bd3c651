package stocktake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/numerator"
	"stockbook/internal/core/security"
	"stockbook/internal/core/tx"
	"stockbook/internal/core/types"
	"stockbook/internal/domain"
	"stockbook/internal/domain/alerts"
	"stockbook/internal/domain/audit"
	"stockbook/internal/domain/catalogs/hotel"
	"stockbook/internal/domain/catalogs/item"
	"stockbook/internal/domain/events"
	"stockbook/internal/domain/periods"
	"stockbook/internal/domain/registers/movement"
	"stockbook/internal/domain/registers/snapshot"
	"stockbook/internal/domain/rollover"
	"stockbook/internal/domain/uom"
)

// --- in-memory fakes ---

type memStocktakes struct {
	docs  map[id.ID]Stocktake
	lines map[id.ID][]Line
}

func newMemStocktakes() *memStocktakes {
	return &memStocktakes{
		docs:  make(map[id.ID]Stocktake),
		lines: make(map[id.ID][]Line),
	}
}

func (m *memStocktakes) Create(ctx context.Context, doc *Stocktake) error {
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memStocktakes) GetByID(ctx context.Context, docID id.ID) (*Stocktake, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("stocktake", docID.String())
	}
	cp := doc
	cp.Lines = nil
	return &cp, nil
}

func (m *memStocktakes) GetForUpdate(ctx context.Context, docID id.ID) (*Stocktake, error) {
	return m.GetByID(ctx, docID)
}

func (m *memStocktakes) FindByDateRange(ctx context.Context, hotelID id.ID, periodStart, periodEnd time.Time) (*Stocktake, error) {
	for _, doc := range m.docs {
		if doc.HotelID == hotelID && doc.PeriodStart.Equal(periodStart) && doc.PeriodEnd.Equal(periodEnd) {
			cp := doc
			cp.Lines = nil
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStocktakes) ExistsDraftAfter(ctx context.Context, hotelID id.ID, after time.Time) (bool, error) {
	for _, doc := range m.docs {
		if doc.HotelID == hotelID && doc.Status == entity.StatusDraft && doc.PeriodStart.After(after) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStocktakes) Update(ctx context.Context, doc *Stocktake) error {
	cp := *doc
	cp.Lines = nil
	m.docs[doc.ID] = cp
	return nil
}

func (m *memStocktakes) Delete(ctx context.Context, docID id.ID) error {
	delete(m.docs, docID)
	delete(m.lines, docID)
	return nil
}

func (m *memStocktakes) GetLines(ctx context.Context, docID id.ID) ([]Line, error) {
	return append([]Line(nil), m.lines[docID]...), nil
}

func (m *memStocktakes) SaveLines(ctx context.Context, docID id.ID, lines []Line) error {
	m.lines[docID] = append([]Line(nil), lines...)
	return nil
}

func (m *memStocktakes) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Stocktake], error) {
	var out []*Stocktake
	for docID := range m.docs {
		doc := m.docs[docID]
		out = append(out, &doc)
	}
	return domain.ListResult[*Stocktake]{Items: out, TotalCount: int64(len(out))}, nil
}

type memPeriods struct {
	byID map[id.ID]periods.Period
}

func newMemPeriods() *memPeriods {
	return &memPeriods{byID: make(map[id.ID]periods.Period)}
}

func (m *memPeriods) Create(ctx context.Context, p *periods.Period) error {
	m.byID[p.ID] = *p
	return nil
}

func (m *memPeriods) GetByID(ctx context.Context, periodID id.ID) (*periods.Period, error) {
	p, ok := m.byID[periodID]
	if !ok {
		return nil, apperror.NewNotFound("period", periodID.String())
	}
	cp := p
	return &cp, nil
}

func (m *memPeriods) GetForUpdate(ctx context.Context, periodID id.ID) (*periods.Period, error) {
	return m.GetByID(ctx, periodID)
}

func (m *memPeriods) Update(ctx context.Context, p *periods.Period) error {
	m.byID[p.ID] = *p
	return nil
}

func (m *memPeriods) FindOverlapping(ctx context.Context, hotelID id.ID, periodType periods.PeriodType, start, end time.Time) ([]*periods.Period, error) {
	var out []*periods.Period
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID == hotelID && p.PeriodType == periodType && p.Overlaps(start, end) {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (m *memPeriods) FindByDateRange(ctx context.Context, hotelID id.ID, start, end time.Time) (*periods.Period, error) {
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID == hotelID && p.StartDate.Equal(start) && p.EndDate.Equal(end) {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memPeriods) FindPrior(ctx context.Context, ref *periods.Period) (*periods.Period, error) {
	var prior *periods.Period
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID != ref.HotelID || p.PeriodType != ref.PeriodType || !p.EndDate.Before(ref.StartDate) {
			continue
		}
		if prior == nil || p.EndDate.After(prior.EndDate) {
			cp := p
			prior = &cp
		}
	}
	return prior, nil
}

func (m *memPeriods) FindLaterClosed(ctx context.Context, ref *periods.Period) (*periods.Period, error) {
	var later *periods.Period
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID != ref.HotelID || p.PeriodType != ref.PeriodType || !p.IsClosed || !p.StartDate.After(ref.EndDate) {
			continue
		}
		if later == nil || p.StartDate.Before(later.StartDate) {
			cp := p
			later = &cp
		}
	}
	return later, nil
}

func (m *memPeriods) FindClosedContaining(ctx context.Context, hotelID id.ID, t time.Time) (*periods.Period, error) {
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID == hotelID && p.IsClosed && p.ContainsTime(t) {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memPeriods) ListByHotel(ctx context.Context, hotelID id.ID, limit, offset int) ([]*periods.Period, error) {
	var out []*periods.Period
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID == hotelID {
			out = append(out, &p)
		}
	}
	return out, nil
}

type memSnapshots struct {
	byPeriod map[id.ID]map[id.ID]entity.Snapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{byPeriod: make(map[id.ID]map[id.ID]entity.Snapshot)}
}

func (m *memSnapshots) ReplaceForPeriod(ctx context.Context, periodID id.ID, snapshots []entity.Snapshot) error {
	set := make(map[id.ID]entity.Snapshot, len(snapshots))
	for _, s := range snapshots {
		set[s.ItemID] = s
	}
	m.byPeriod[periodID] = set
	return nil
}

func (m *memSnapshots) DeleteForPeriod(ctx context.Context, periodID id.ID) error {
	delete(m.byPeriod, periodID)
	return nil
}

func (m *memSnapshots) GetForPeriod(ctx context.Context, periodID id.ID) (map[id.ID]entity.Snapshot, error) {
	out := make(map[id.ID]entity.Snapshot, len(m.byPeriod[periodID]))
	for k, v := range m.byPeriod[periodID] {
		out[k] = v
	}
	return out, nil
}

func (m *memSnapshots) GetByItemPeriod(ctx context.Context, itemID, periodID id.ID) (*entity.Snapshot, error) {
	if s, ok := m.byPeriod[periodID][itemID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memSnapshots) HistoryForItem(ctx context.Context, hotelID, itemID id.ID, from, to time.Time) ([]entity.Snapshot, error) {
	var out []entity.Snapshot
	for _, set := range m.byPeriod {
		if s, ok := set[itemID]; ok && s.HotelID == hotelID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memMovements struct {
	entries []entity.Movement
}

func (m *memMovements) CreateMovements(ctx context.Context, movements []entity.Movement) error {
	m.entries = append(m.entries, movements...)
	return nil
}

func (m *memMovements) AggregateWindow(ctx context.Context, hotelID id.ID, from, to time.Time) ([]movement.ItemTotals, error) {
	byItem := make(map[id.ID]movement.Totals)
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

	out := make([]movement.ItemTotals, 0, len(byItem))
	for itemID, t := range byItem {
		out = append(out, movement.ItemTotals{ItemID: itemID, Totals: t})
	}
	return out, nil
}

func (m *memMovements) ListByItem(ctx context.Context, hotelID, itemID id.ID, from, to time.Time, limit, offset int) ([]entity.Movement, error) {
	var out []entity.Movement
	for _, e := range m.entries {
		if e.HotelID == hotelID && e.ItemID == itemID && !e.OccurredAt.Before(from) && e.OccurredAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type memItems struct {
	items map[id.ID]*item.Item
}

func newMemItems(its ...*item.Item) *memItems {
	m := &memItems{items: make(map[id.ID]*item.Item)}
	for _, it := range its {
		m.items[it.ID] = it
	}
	return m
}

func (m *memItems) Create(ctx context.Context, it *item.Item) error {
	m.items[it.ID] = it
	return nil
}

func (m *memItems) GetByID(ctx context.Context, itemID id.ID) (*item.Item, error) {
	it, ok := m.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	return it, nil
}

func (m *memItems) GetByCode(ctx context.Context, code string) (*item.Item, error) {
	for _, it := range m.items {
		if it.Code == code {
			return it, nil
		}
	}
	return nil, apperror.NewNotFound("item", code)
}

func (m *memItems) Update(ctx context.Context, it *item.Item) error {
	m.items[it.ID] = it
	return nil
}

func (m *memItems) Delete(ctx context.Context, itemID id.ID) error {
	delete(m.items, itemID)
	return nil
}

func (m *memItems) SetDeletionMark(ctx context.Context, itemID id.ID, marked bool) error {
	return nil
}

func (m *memItems) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*item.Item], error) {
	return domain.ListResult[*item.Item]{}, nil
}

func (m *memItems) Exists(ctx context.Context, itemID id.ID) (bool, error) {
	_, ok := m.items[itemID]
	return ok, nil
}

func (m *memItems) ExistsByCode(ctx context.Context, code string) (bool, error) {
	for _, it := range m.items {
		if it.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memItems) GetTree(ctx context.Context, rootID *id.ID) ([]*item.Item, error) {
	return nil, nil
}

func (m *memItems) GetPath(ctx context.Context, itemID id.ID) ([]*item.Item, error) {
	return nil, nil
}

func (m *memItems) FindActive(ctx context.Context) ([]*item.Item, error) {
	var out []*item.Item
	for _, it := range m.items {
		if it.Active {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memItems) FindByCategory(ctx context.Context, category uom.Category, filter domain.ListFilter) (domain.ListResult[*item.Item], error) {
	return domain.ListResult[*item.Item]{}, nil
}

type staticConfig struct {
	cfg hotel.Config
}

func (c *staticConfig) ConfigFor(ctx context.Context, hotelID id.ID) (hotel.Config, error) {
	return c.cfg, nil
}

type txMarker struct{}

// txBoundPublisher carries the outbox publisher's contract into unit
// tests: publishing outside a transaction context is an error. Accepted
// events are kept for assertions.
type txBoundPublisher struct {
	published []events.DomainEvent
}

func (p *txBoundPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *txBoundPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	if ctx.Value(txMarker{}) == nil {
		return errors.New("outbox publish requires transaction context")
	}
	p.published = append(p.published, evts...)
	return nil
}

func (p *txBoundPublisher) ofType(eventType string) []events.DomainEvent {
	var out []events.DomainEvent
	for _, e := range p.published {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// --- fixture ---

type fixture struct {
	hotelID id.ID

	stocktakes *memStocktakes
	periodRepo *memPeriods
	snapRepo   *memSnapshots
	moveRepo   *memMovements
	itemRepo   *memItems
	cfg        *staticConfig
	publisher  *txBoundPublisher

	svc     *Service
	manager *periods.Manager
}

func newFixture(t *testing.T, items ...*item.Item) *fixture {
	t.Helper()

	f := &fixture{
		hotelID:    id.New(),
		stocktakes: newMemStocktakes(),
		periodRepo: newMemPeriods(),
		snapRepo:   newMemSnapshots(),
		moveRepo:   &memMovements{},
		itemRepo:   newMemItems(items...),
		cfg:        &staticConfig{cfg: hotel.DefaultConfig()},
	}
	// tests pin period dates, so the approval backdating window is off
	f.cfg.cfg.BackdateGraceDays = 0

	// The mock manager marks the context so the publisher can tell
	// transactional callers from stray ones, same as the real outbox.
	txm := &tx.MockManager{RunFunc: func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(context.WithValue(ctx, txMarker{}, true))
	}}
	publisher := &txBoundPublisher{}
	f.publisher = publisher

	engine, err := alerts.NewEngine()
	require.NoError(t, err)

	snapSvc := snapshot.NewService(f.snapRepo)
	moveSvc := movement.NewService(f.moveRepo, f.itemRepo, f.periodRepo, f.cfg, txm, publisher)
	seeder := rollover.NewSeeder(f.periodRepo, f.snapRepo, publisher)

	f.svc = NewService(
		f.stocktakes, f.itemRepo, f.periodRepo,
		moveSvc, snapSvc, seeder,
		f.cfg, engine,
		&numerator.MockGenerator{}, txm, publisher, audit.NopRecorder{},
	)

	f.manager = periods.NewManager(f.periodRepo, txm, publisher)
	f.manager.AttachStocktakeGateway(f.svc)
	return f
}

func (f *fixture) newPeriod(t *testing.T, start, end time.Time) *periods.Period {
	t.Helper()
	p := periods.NewPeriod(f.hotelID, start, end, periods.TypeMonthly)
	require.NoError(t, f.periodRepo.Create(context.Background(), p))
	return p
}

func (f *fixture) addMovement(itemID id.ID, kind entity.MovementKind, qty string, occurredAt time.Time) {
	m := entity.NewMovement(f.hotelID, itemID, kind, types.MustQuantity(qty), occurredAt, entity.SourceManual)
	f.moveRepo.entries = append(f.moveRepo.entries, m)
}

func adminCtx() context.Context {
	return security.WithScope(context.Background(), &security.AccessScope{
		ActorID: "boss",
		IsAdmin: true,
	})
}

// --- tests ---

func TestInitializeForPeriod_FirstEverPeriod(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)

	require.Len(t, res.Stocktake.Lines, 1)
	line := res.Stocktake.Lines[0]
	assert.True(t, line.OpeningQty.IsZero())
	assert.False(t, line.OpeningMissingSnapshot)
	assert.Equal(t, "ST-2026-00001", res.Stocktake.Number)

	// first-ever period: one warning for the whole run, not one per item
	require.Len(t, res.Warnings, 1)

	// second initialization for the same period is rejected
	_, err = f.svc.InitializeForPeriod(context.Background(), p.ID)
	assert.Error(t, err)
}

func TestApprove_ClosesPeriodAndMaterializesSnapshots(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)
	docID := res.Stocktake.ID

	f.addMovement(keg.ID, entity.MovementPurchase, "100", day(2026, 8, 5))
	f.addMovement(keg.ID, entity.MovementSale, "60", day(2026, 8, 20))
	// end date's full day counts
	f.addMovement(keg.ID, entity.MovementSale, "5", day(2026, 8, 31).Add(20*time.Hour))
	// outside the window, must be ignored
	f.addMovement(keg.ID, entity.MovementSale, "999", day(2026, 9, 1))

	require.NoError(t, f.svc.SetCounts(context.Background(), docID, []CountEntry{
		{ItemID: keg.ID, Full: types.Zero(), Partial: types.MustQuantity("30")},
	}, "mary"))

	require.NoError(t, f.svc.Approve(adminCtx(), docID, "boss"))

	doc, err := f.svc.GetByID(context.Background(), docID)
	require.NoError(t, err)
	assert.True(t, doc.IsApproved())
	assert.Equal(t, 1, doc.ApprovalVersion)

	// expected = 0 + 100 - 60 - 5 = 35; counted 30; variance -5 servings = -10.00
	line := doc.LineByItem(keg.ID)
	require.NotNil(t, line)
	assert.True(t, line.ExpectedQty.Equal(types.MustQuantity("35")), "expected %s", line.ExpectedQty)
	assert.True(t, line.VarianceQty.Equal(types.MustQuantity("-5")))
	assert.True(t, line.VarianceValue.Equal(types.MustMoney("-10")))

	// period closed in the same operation
	closed, err := f.periodRepo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)

	// closing snapshot carries the raw count and derived figures
	snaps, err := f.snapRepo.GetForPeriod(context.Background(), p.ID)
	require.NoError(t, err)
	snap, ok := snaps[keg.ID]
	require.True(t, ok)
	assert.True(t, snap.ClosingPartialUnits.Equal(types.MustQuantity("30")))
	assert.True(t, snap.ClosingServings.Equal(types.MustQuantity("30")))
	assert.True(t, snap.ClosingPhysical.Equal(types.MustQuantity("0.6")))
	assert.True(t, snap.ClosingValue.Equal(types.MustMoney("60")))
	assert.Equal(t, docID, snap.RecorderID)
	assert.Equal(t, 1, snap.RecorderVersion)
}

func TestApprove_RequiresEveryLineCounted(t *testing.T) {
	a := draughtItem("KEG-001", "50", "100")
	b := draughtItem("KEG-002", "50", "100")
	f := newFixture(t, a, b)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.SetCounts(context.Background(), res.Stocktake.ID, []CountEntry{
		{ItemID: a.ID, Full: types.MustQuantity("1"), Partial: types.Zero()},
	}, "mary"))

	err = f.svc.Approve(adminCtx(), res.Stocktake.ID, "boss")
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Details["uncounted_skus"], "KEG-002")
}

func TestApprove_RequiresPermission(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)

	err = f.svc.Approve(context.Background(), res.Stocktake.ID, "nobody")
	require.Error(t, err)
}

func TestApprove_RepeatWithUnchangedCountsIsNoOp(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)
	docID := res.Stocktake.ID

	require.NoError(t, f.svc.SetCounts(context.Background(), docID, []CountEntry{
		{ItemID: keg.ID, Full: types.MustQuantity("2"), Partial: types.Zero()},
	}, "mary"))
	require.NoError(t, f.svc.Approve(adminCtx(), docID, "boss"))

	require.NoError(t, f.svc.Approve(adminCtx(), docID, "boss"))

	doc, err := f.svc.GetByID(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ApprovalVersion, "no second approval iteration")
}

func TestApprove_RepeatWithChangedCountsDemandsReopen(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)
	docID := res.Stocktake.ID

	require.NoError(t, f.svc.SetCounts(context.Background(), docID, []CountEntry{
		{ItemID: keg.ID, Full: types.MustQuantity("2"), Partial: types.Zero()},
	}, "mary"))
	require.NoError(t, f.svc.Approve(adminCtx(), docID, "boss"))

	// counts drifted underneath the approval (e.g. direct data fix)
	f.stocktakes.lines[docID][0].CountedFull = types.MustQuantity("3")

	err = f.svc.Approve(adminCtx(), docID, "boss")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidStateTransition, appErr.Code)
}

func TestReopen_RevertsStocktakeAndClearsSnapshots(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)
	docID := res.Stocktake.ID

	require.NoError(t, f.svc.SetCounts(context.Background(), docID, []CountEntry{
		{ItemID: keg.ID, Full: types.MustQuantity("2"), Partial: types.Zero()},
	}, "mary"))
	require.NoError(t, f.svc.Approve(adminCtx(), docID, "boss"))

	reopened, err := f.manager.Reopen(adminCtx(), p.ID, "boss")
	require.NoError(t, err)
	assert.False(t, reopened.Period.IsClosed)
	assert.Equal(t, 1, reopened.Period.ReopenCount)

	// stocktake back to draft, snapshots gone - atomically with the reopen
	doc, err := f.svc.GetByID(context.Background(), docID)
	require.NoError(t, err)
	assert.False(t, doc.IsApproved())
	assert.Equal(t, 1, doc.ApprovalVersion, "approval iteration is kept for register cleanup")

	snaps, err := f.snapRepo.GetForPeriod(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	// counts survive the reopen and the period can be approved again
	require.NoError(t, f.svc.Approve(adminCtx(), docID, "boss"))
	doc, err = f.svc.GetByID(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.ApprovalVersion)
}

func TestRollover_SeedsOpeningsFromPriorSnapshots(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	aug := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), aug.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetCounts(context.Background(), res.Stocktake.ID, []CountEntry{
		{ItemID: keg.ID, Full: types.MustQuantity("1"), Partial: types.MustQuantity("20")},
	}, "mary"))
	require.NoError(t, f.svc.Approve(adminCtx(), res.Stocktake.ID, "boss"))

	// new item appears mid-quarter: it has no August snapshot
	gin := item.NewItem("GIN-007", "Gin", uom.CategorySpirits, "")
	gin.UOMFactor = types.MustQuantity("28")
	gin.UnitCost = types.MustMoney("21")
	require.NoError(t, f.itemRepo.Create(context.Background(), gin))

	sep := f.newPeriod(t, day(2026, 9, 1), day(2026, 9, 30))
	res, err = f.svc.InitializeForPeriod(context.Background(), sep.ID)
	require.NoError(t, err)

	// 1 keg + 20 loose pints at factor 50 -> 70 servings opening
	kegLine := res.Stocktake.LineByItem(keg.ID)
	require.NotNil(t, kegLine)
	assert.True(t, kegLine.OpeningQty.Equal(types.MustQuantity("70")), "opening %s", kegLine.OpeningQty)
	assert.False(t, kegLine.OpeningMissingSnapshot)

	ginLine := res.Stocktake.LineByItem(gin.ID)
	require.NotNil(t, ginLine)
	assert.True(t, ginLine.OpeningQty.IsZero())
	assert.True(t, ginLine.OpeningMissingSnapshot)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, apperror.CodeMissingPriorSnapshot, res.Warnings[0].Code)

	// Seeding emits the missing-snapshot event through the outbox contract,
	// which only accepts publishes from inside the initialize transaction.
	missing := f.publisher.ofType(events.TypeMissingPriorSnapshot)
	require.Len(t, missing, 1)
	assert.Equal(t, sep.ID, missing[0].AggregateID)
	payload, ok := missing[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, gin.ID, payload["item_id"])
}

func TestActorContext_StampsAuditFields(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(security.WithActorID(context.Background(), "mary"), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "mary", res.Stocktake.CreatedBy)
	assert.Equal(t, "mary", res.Stocktake.UpdatedBy)

	err = f.svc.SetCounts(security.WithActorID(context.Background(), "john"), res.Stocktake.ID, []CountEntry{
		{ItemID: keg.ID, Full: types.MustQuantity("1"), Partial: types.MustQuantity("0")},
	}, "john")
	require.NoError(t, err)

	doc, err := f.svc.GetByID(context.Background(), res.Stocktake.ID)
	require.NoError(t, err)
	assert.Equal(t, "mary", doc.CreatedBy)
	assert.Equal(t, "john", doc.UpdatedBy)
}

func TestSetCounts_RejectedOnApprovedStocktake(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)
	docID := res.Stocktake.ID

	require.NoError(t, f.svc.SetCounts(context.Background(), docID, []CountEntry{
		{ItemID: keg.ID, Full: types.MustQuantity("2"), Partial: types.Zero()},
	}, "mary"))
	require.NoError(t, f.svc.Approve(adminCtx(), docID, "boss"))

	err = f.svc.SetCounts(context.Background(), docID, []CountEntry{
		{ItemID: keg.ID, Full: types.MustQuantity("5"), Partial: types.Zero()},
	}, "mary")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidStateTransition, appErr.Code)
}

func TestRecalculate_DraftRefreshesFromLedger(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)
	docID := res.Stocktake.ID

	f.addMovement(keg.ID, entity.MovementPurchase, "50", day(2026, 8, 5))

	cmp, err := f.svc.Recalculate(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, cmp.Lines, 1)
	assert.True(t, cmp.Lines[0].ExpectedQty.Equal(types.MustQuantity("50")))

	// more ledger entries arrive; a fresh recalculation sees them
	f.addMovement(keg.ID, entity.MovementWaste, "3", day(2026, 8, 10))

	cmp, err = f.svc.Recalculate(context.Background(), docID)
	require.NoError(t, err)
	assert.True(t, cmp.Lines[0].ExpectedQty.Equal(types.MustQuantity("47")))
}

func TestFindForPeriod_UsesDateRangeLookup(t *testing.T) {
	keg := draughtItem("KEG-001", "50", "100")
	f := newFixture(t, keg)
	p := f.newPeriod(t, day(2026, 8, 1), day(2026, 8, 31))

	res, err := f.svc.InitializeForPeriod(context.Background(), p.ID)
	require.NoError(t, err)

	found, err := f.svc.FindForPeriod(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, res.Stocktake.ID, found.ID)
	assert.Len(t, found.Lines, 1)

	other := f.newPeriod(t, day(2026, 9, 1), day(2026, 9, 30))
	_, err = f.svc.FindForPeriod(context.Background(), other)
	assert.True(t, apperror.IsNotFound(err))
}
