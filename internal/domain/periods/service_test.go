package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/core/security"
	"stockbook/internal/core/tx"
	"stockbook/internal/domain/events"
)

type memRepo struct {
	byID map[id.ID]Period
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[id.ID]Period)}
}

func (m *memRepo) Create(ctx context.Context, p *Period) error {
	m.byID[p.ID] = *p
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, periodID id.ID) (*Period, error) {
	p, ok := m.byID[periodID]
	if !ok {
		return nil, apperror.NewNotFound("period", periodID.String())
	}
	cp := p
	return &cp, nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, periodID id.ID) (*Period, error) {
	return m.GetByID(ctx, periodID)
}

func (m *memRepo) Update(ctx context.Context, p *Period) error {
	m.byID[p.ID] = *p
	return nil
}

func (m *memRepo) FindOverlapping(ctx context.Context, hotelID id.ID, periodType PeriodType, start, end time.Time) ([]*Period, error) {
	var out []*Period
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID == hotelID && p.PeriodType == periodType && p.Overlaps(start, end) {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (m *memRepo) FindByDateRange(ctx context.Context, hotelID id.ID, start, end time.Time) (*Period, error) {
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID == hotelID && p.StartDate.Equal(start) && p.EndDate.Equal(end) {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memRepo) FindPrior(ctx context.Context, ref *Period) (*Period, error) {
	var prior *Period
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

func (m *memRepo) FindLaterClosed(ctx context.Context, ref *Period) (*Period, error) {
	var later *Period
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

func (m *memRepo) FindClosedContaining(ctx context.Context, hotelID id.ID, t time.Time) (*Period, error) {
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID == hotelID && p.IsClosed && p.ContainsTime(t) {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memRepo) ListByHotel(ctx context.Context, hotelID id.ID, limit, offset int) ([]*Period, error) {
	var out []*Period
	for pid := range m.byID {
		p := m.byID[pid]
		if p.HotelID == hotelID {
			out = append(out, &p)
		}
	}
	return out, nil
}

// stubGateway is a hand-wired stocktake side.
type stubGateway struct {
	approved   bool
	laterDraft bool
	reverted   int
}

func (g *stubGateway) IsApproved(ctx context.Context, p *Period) (bool, error) {
	return g.approved, nil
}

func (g *stubGateway) RevertApproval(ctx context.Context, p *Period) error {
	g.reverted++
	return nil
}

func (g *stubGateway) HasLaterDraft(ctx context.Context, p *Period) (bool, error) {
	return g.laterDraft, nil
}

func newManager(repo Repository, gw StocktakeGateway) *Manager {
	m := NewManager(repo, &tx.MockManager{}, events.NopPublisher{})
	m.AttachStocktakeGateway(gw)
	return m
}

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func adminCtx() context.Context {
	return security.WithScope(context.Background(), &security.AccessScope{
		ActorID: "boss",
		IsAdmin: true,
	})
}

func TestCreate_RejectsOverlappingSameType(t *testing.T) {
	repo := newMemRepo()
	m := newManager(repo, &stubGateway{})
	hotelID := id.New()

	_, err := m.Create(context.Background(), hotelID, day(2026, 8, 1), day(2026, 8, 31), TypeMonthly)
	require.NoError(t, err)

	// straddles the August boundary
	_, err = m.Create(context.Background(), hotelID, day(2026, 8, 15), day(2026, 9, 14), TypeMonthly)
	require.Error(t, err)
	assert.True(t, apperror.IsDuplicatePeriod(err))

	// a different period type may coexist over the same dates
	_, err = m.Create(context.Background(), hotelID, day(2026, 8, 10), day(2026, 8, 12), TypeAdhoc)
	assert.NoError(t, err)

	// another hotel is unaffected
	_, err = m.Create(context.Background(), id.New(), day(2026, 8, 1), day(2026, 8, 31), TypeMonthly)
	assert.NoError(t, err)
}

func TestCreate_StampsActorAuditFields(t *testing.T) {
	m := newManager(newMemRepo(), &stubGateway{})

	ctx := security.WithActorID(context.Background(), "mary")
	p, err := m.Create(ctx, id.New(), day(2026, 8, 1), day(2026, 8, 31), TypeMonthly)
	require.NoError(t, err)
	assert.Equal(t, "mary", p.CreatedBy)
	assert.Equal(t, "mary", p.UpdatedBy)

	got, err := m.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "mary", got.CreatedBy)
}

func TestCreate_ValidatesDatesAndType(t *testing.T) {
	m := newManager(newMemRepo(), &stubGateway{})
	hotelID := id.New()

	_, err := m.Create(context.Background(), hotelID, day(2026, 8, 31), day(2026, 8, 1), TypeMonthly)
	require.Error(t, err)

	_, err = m.Create(context.Background(), hotelID, day(2026, 8, 1), day(2026, 8, 31), PeriodType("quarterly"))
	require.Error(t, err)
}

func TestClose_RequiresApprovedStocktake(t *testing.T) {
	repo := newMemRepo()
	gw := &stubGateway{}
	m := newManager(repo, gw)
	hotelID := id.New()

	p, err := m.Create(context.Background(), hotelID, day(2026, 8, 1), day(2026, 8, 31), TypeMonthly)
	require.NoError(t, err)

	err = m.Close(context.Background(), p.ID, "boss")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidStateTransition, appErr.Code)

	gw.approved = true
	require.NoError(t, m.Close(context.Background(), p.ID, "boss"))

	got, err := m.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsClosed)
	assert.Equal(t, "boss", got.ClosedBy)

	// already closed: no-op, not an error
	require.NoError(t, m.Close(context.Background(), p.ID, "boss"))
}

func TestReopen_RefusesOpenPeriod(t *testing.T) {
	repo := newMemRepo()
	m := newManager(repo, &stubGateway{approved: true})

	p, err := m.Create(context.Background(), id.New(), day(2026, 8, 1), day(2026, 8, 31), TypeMonthly)
	require.NoError(t, err)

	_, err = m.Reopen(adminCtx(), p.ID, "boss")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidStateTransition, appErr.Code)
}

func TestReopen_RefusesWhenLaterPeriodClosed(t *testing.T) {
	repo := newMemRepo()
	gw := &stubGateway{approved: true}
	m := newManager(repo, gw)
	hotelID := id.New()

	aug, err := m.Create(context.Background(), hotelID, day(2026, 8, 1), day(2026, 8, 31), TypeMonthly)
	require.NoError(t, err)
	sep, err := m.Create(context.Background(), hotelID, day(2026, 9, 1), day(2026, 9, 30), TypeMonthly)
	require.NoError(t, err)

	require.NoError(t, m.Close(context.Background(), aug.ID, "boss"))
	require.NoError(t, m.Close(context.Background(), sep.ID, "boss"))

	_, err = m.Reopen(adminCtx(), aug.ID, "boss")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, sep.ID.String(), appErr.Details["later_period_id"])

	// reverse order works: September first, then August
	res, err := m.Reopen(adminCtx(), sep.ID, "boss")
	require.NoError(t, err)
	assert.False(t, res.Period.IsClosed)

	_, err = m.Reopen(adminCtx(), aug.ID, "boss")
	require.NoError(t, err)
	assert.Equal(t, 2, gw.reverted)
}

func TestReopen_WarnsOnLaterDraftStocktake(t *testing.T) {
	repo := newMemRepo()
	gw := &stubGateway{approved: true, laterDraft: true}
	m := newManager(repo, gw)

	p, err := m.Create(context.Background(), id.New(), day(2026, 8, 1), day(2026, 8, 31), TypeMonthly)
	require.NoError(t, err)
	require.NoError(t, m.Close(context.Background(), p.ID, "boss"))

	res, err := m.Reopen(adminCtx(), p.ID, "boss")
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 1, gw.reverted)
	assert.Equal(t, 1, res.Period.ReopenCount)
}

func TestReopen_RequiresPermission(t *testing.T) {
	repo := newMemRepo()
	m := newManager(repo, &stubGateway{approved: true})

	p, err := m.Create(context.Background(), id.New(), day(2026, 8, 1), day(2026, 8, 31), TypeMonthly)
	require.NoError(t, err)
	require.NoError(t, m.Close(context.Background(), p.ID, "boss"))

	_, err = m.Reopen(context.Background(), p.ID, "nobody")
	require.Error(t, err)
}
