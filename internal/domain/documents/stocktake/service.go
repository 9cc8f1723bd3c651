package stocktake

import (
	"context"
	"fmt"
	"strings"
	"time"

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
	"stockbook/pkg/logger"
)

// InitResult reports a freshly initialized stocktake and the rollover
// warnings hit while seeding its opening balances.
type InitResult struct {
	Stocktake *Stocktake           `json:"stocktake"`
	Warnings  []*apperror.AppError `json:"warnings,omitempty"`
}

// CountEntry is one staff count submission for an item's line.
type CountEntry struct {
	ItemID  id.ID          `json:"itemId"`
	Full    types.Quantity `json:"full"`
	Partial types.Quantity `json:"partial"`
}

// Overrides carries manual corrections to one line's ledger figures.
// Nil fields clear nothing; to remove an override set the field to the
// ledger figure.
type Overrides struct {
	Purchases *types.Quantity `json:"purchases,omitempty"`
	Sales     *types.Quantity `json:"sales,omitempty"`
	Waste     *types.Quantity `json:"waste,omitempty"`
}

// ComparisonResult is the computed expected-vs-counted view of a stocktake.
type ComparisonResult struct {
	StocktakeID id.ID                 `json:"stocktakeId"`
	HotelID     id.ID                 `json:"hotelId"`
	Status      entity.DocumentStatus `json:"status"`

	Lines  []Line         `json:"lines"`
	Alerts []alerts.Alert `json:"alerts,omitempty"`

	TotalExpectedValue types.Money `json:"totalExpectedValue"`
	TotalCountedValue  types.Money `json:"totalCountedValue"`
	TotalVarianceValue types.Money `json:"totalVarianceValue"`
}

// Service is the stocktake engine: line generation with seeded openings,
// count capture, recalculation against the movement ledger, and the
// approval that freezes a period.
type Service struct {
	repo        Repository
	items       item.Repository
	periodRepo  periods.Repository
	movements   *movement.Service
	snapshots   *snapshot.Service
	seeder      *rollover.Seeder
	config      hotel.ConfigProvider
	alertEngine *alerts.Engine
	numerator   numerator.Generator
	txManager   tx.Manager
	publisher   events.Publisher
	auditor     audit.Recorder
	hooks       *domain.HookRegistry[*Stocktake]
}

// NewService creates a stocktake service.
func NewService(
	repo Repository,
	items item.Repository,
	periodRepo periods.Repository,
	movements *movement.Service,
	snapshots *snapshot.Service,
	seeder *rollover.Seeder,
	config hotel.ConfigProvider,
	alertEngine *alerts.Engine,
	numGen numerator.Generator,
	txManager tx.Manager,
	publisher events.Publisher,
	auditor audit.Recorder,
) *Service {
	return &Service{
		repo:        repo,
		items:       items,
		periodRepo:  periodRepo,
		movements:   movements,
		snapshots:   snapshots,
		seeder:      seeder,
		config:      config,
		alertEngine: alertEngine,
		numerator:   numGen,
		txManager:   txManager,
		publisher:   publisher,
		auditor:     auditor,
		hooks:       domain.NewHookRegistry[*Stocktake](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Stocktake] {
	return s.hooks
}

// InitializeForPeriod creates the period's draft stocktake: one line per
// active item with catalog facts frozen and openings seeded from the prior
// period's closing snapshots. Rollover warnings (missing snapshots,
// first-ever period) come back in the result and are flagged on the lines.
func (s *Service) InitializeForPeriod(ctx context.Context, periodID id.ID) (*InitResult, error) {
	p, err := s.periodRepo.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if p.IsClosed {
		return nil, apperror.NewPeriodClosed(p.Label())
	}

	existing, err := s.repo.FindByDateRange(ctx, p.HotelID, p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewDuplicate("stocktake", "period", p.Label()).
			WithDetail("stocktake_id", existing.ID.String())
	}

	activeItems, err := s.items.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active items: %w", err)
	}

	doc := NewStocktake(p.HotelID, p.StartDate, p.EndDate)
	audit.EnrichCreatedBy(ctx, &doc.CreatedBy, &doc.UpdatedBy)

	// Seeding publishes missing-snapshot events through the outbox, so it
	// must share the transaction that saves the document.
	var seed *rollover.Result
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		seed, err = s.seeder.SeedOpenings(ctx, p, activeItems)
		if err != nil {
			return err
		}
		for _, it := range activeItems {
			opening := seed.Openings[it.ID]
			doc.AddLine(it, opening.Qty, opening.MissingSnapshot)
		}

		if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
			return err
		}
		if err := doc.Validate(ctx); err != nil {
			return err
		}

		if doc.Number == "" {
			cfg := numerator.DefaultConfig(NumberPrefix)
			number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, doc.Date)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			doc.Number = number
		}

		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create stocktake: %w", err)
		}
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.RunAfterCreate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "stocktake initialized",
		"stocktake_id", doc.ID,
		"number", doc.Number,
		"period", p.Label(),
		"lines", len(doc.Lines),
		"warnings", len(seed.Warnings),
	)
	return &InitResult{Stocktake: doc, Warnings: seed.Warnings}, nil
}

// GetByID retrieves a stocktake with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Stocktake, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return s.withLines(ctx, doc)
}

// FindForPeriod resolves the period's stocktake through the canonical
// (hotel, period start, period end) lookup.
func (s *Service) FindForPeriod(ctx context.Context, p *periods.Period) (*Stocktake, error) {
	doc, err := s.repo.FindByDateRange(ctx, p.HotelID, p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NewNotFound("stocktake", p.Label())
	}
	return s.withLines(ctx, doc)
}

func (s *Service) withLines(ctx context.Context, doc *Stocktake) (*Stocktake, error) {
	lines, err := s.repo.GetLines(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	return doc, nil
}

// SetCounts records staff counts on a draft stocktake. The whole batch is
// one transaction; counting the same item again simply overwrites.
func (s *Service) SetCounts(ctx context.Context, docID id.ID, entries []CountEntry, countedBy string) error {
	if len(entries) == 0 {
		return nil
	}

	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if err := doc.CanModify(); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, e := range entries {
		if err := doc.SetCount(e.ItemID, e.Full, e.Partial, countedBy, now); err != nil {
			return err
		}
	}
	audit.EnrichUpdatedBy(ctx, &doc.UpdatedBy)

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "counts recorded",
		"stocktake_id", docID,
		"entries", len(entries),
		"counted_by", countedBy,
	)
	return nil
}

// SetOverrides applies manual ledger corrections to one line of a draft
// stocktake. The raw ledger totals stay on the line; overrides only steer
// the expected-stock formula.
func (s *Service) SetOverrides(ctx context.Context, docID, itemID id.ID, ov Overrides) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if err := doc.CanModify(); err != nil {
		return err
	}

	line := doc.LineByItem(itemID)
	if line == nil {
		return apperror.NewNotFound("stocktake line", itemID.String())
	}

	for name, qty := range map[string]*types.Quantity{
		"purchases": ov.Purchases,
		"sales":     ov.Sales,
		"waste":     ov.Waste,
	} {
		if qty != nil && qty.IsNegative() {
			return apperror.NewValidation("override cannot be negative").
				WithDetail("field", name).
				WithDetail("item_sku", line.ItemSKU)
		}
	}

	if ov.Purchases != nil {
		line.OverridePurchases = ov.Purchases
	}
	if ov.Sales != nil {
		line.OverrideSales = ov.Sales
	}
	if ov.Waste != nil {
		line.OverrideWaste = ov.Waste
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
}

// Recalculate refreshes a draft stocktake's ledger totals and derived
// figures and evaluates the hotel's alert rules. Approved stocktakes are
// returned as stored: their figures are the frozen authority.
func (s *Service) Recalculate(ctx context.Context, docID id.ID) (*ComparisonResult, error) {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if !doc.IsApproved() {
		audit.EnrichUpdatedBy(ctx, &doc.UpdatedBy)
		err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.recompute(ctx, doc); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, doc); err != nil {
				return err
			}
			return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
		})
		if err != nil {
			return nil, err
		}
	}

	return s.comparison(ctx, doc)
}

// recompute pulls fresh ledger totals and recomputes every line. An item
// whose unit configuration no longer resolves aborts the whole run with a
// configuration error naming every offending SKU; a stocktake is never
// left half-computed.
func (s *Service) recompute(ctx context.Context, doc *Stocktake) error {
	p, err := s.resolvePeriod(ctx, doc)
	if err != nil {
		return err
	}

	totals, err := s.movements.Aggregate(ctx, p)
	if err != nil {
		return err
	}

	var badSKUs []string
	for i := range doc.Lines {
		line := &doc.Lines[i]
		t := totals[line.ItemID]
		line.Purchases = t.Purchases
		line.Sales = t.Sales
		line.Waste = t.Waste
		line.TransfersIn = t.TransfersIn
		line.TransfersOut = t.TransfersOut
		line.Adjustments = t.Adjustments

		if err := line.Compute(); err != nil {
			if apperror.IsConfiguration(err) {
				badSKUs = append(badSKUs, line.ItemSKU)
				continue
			}
			return err
		}
	}
	if len(badSKUs) > 0 {
		return apperror.NewConfiguration("items have unresolvable unit configuration").
			WithDetail("item_skus", strings.Join(badSKUs, ", "))
	}

	doc.RecalculateTotals()
	return nil
}

func (s *Service) resolvePeriod(ctx context.Context, doc *Stocktake) (*periods.Period, error) {
	p, err := s.periodRepo.FindByDateRange(ctx, doc.HotelID, doc.PeriodStart, doc.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NewNotFound("period",
			doc.PeriodStart.Format("2006-01-02")+".."+doc.PeriodEnd.Format("2006-01-02"))
	}
	return p, nil
}

// comparison builds the result view and runs the alert rules over it.
func (s *Service) comparison(ctx context.Context, doc *Stocktake) (*ComparisonResult, error) {
	cfg, err := s.config.ConfigFor(ctx, doc.HotelID)
	if err != nil {
		return nil, err
	}

	facts := make([]alerts.LineFacts, len(doc.Lines))
	for i := range doc.Lines {
		l := &doc.Lines[i]
		facts[i] = alerts.LineFacts{
			SKU:           l.ItemSKU,
			Name:          l.ItemName,
			Category:      string(l.Category),
			Subcategory:   string(l.Subcategory),
			Opening:       l.OpeningQty.InexactFloat64(),
			Expected:      l.ExpectedQty.InexactFloat64(),
			Counted:       l.CountedQty.InexactFloat64(),
			Variance:      l.VarianceQty.InexactFloat64(),
			VarianceValue: l.VarianceValue.InexactFloat64(),
			Physical:      l.PhysicalUnits.InexactFloat64(),
		}
	}

	triggered, err := s.alertEngine.Evaluate(cfg, facts)
	if err != nil {
		return nil, err
	}

	return &ComparisonResult{
		StocktakeID:        doc.ID,
		HotelID:            doc.HotelID,
		Status:             doc.Status,
		Lines:              doc.Lines,
		Alerts:             triggered,
		TotalExpectedValue: doc.TotalExpectedValue,
		TotalCountedValue:  doc.TotalCountedValue,
		TotalVarianceValue: doc.TotalVarianceValue,
	}, nil
}

// Approve freezes the period: one transaction recomputes every line from
// the ledger, marks the stocktake approved, materializes closing snapshots
// and closes the period. Stocktake and period rows are locked for the
// duration, so a concurrent count or second approval waits and then sees
// the approved state.
//
// Approving an already-approved stocktake with unchanged counts is a
// no-op; with changed counts it fails, because revising an approved period
// requires an explicit reopen.
func (s *Service) Approve(ctx context.Context, docID id.ID, actor string) error {
	scope := security.GetScope(ctx)
	if err := scope.RequirePermission("stocktake", security.PermissionApprove); err != nil {
		return err
	}

	var result *ComparisonResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if doc, err = s.withLines(ctx, doc); err != nil {
			return err
		}

		p, err := s.resolvePeriod(ctx, doc)
		if err != nil {
			return err
		}
		if p, err = s.periodRepo.GetForUpdate(ctx, p.ID); err != nil {
			return err
		}

		if doc.IsApproved() {
			return s.checkRepeatApproval(ctx, doc, p)
		}
		if p.IsClosed {
			return apperror.NewPeriodClosed(p.Label()).
				WithDetail("reason", "period is closed but its stocktake is not approved; reopen first")
		}

		cfg, err := s.config.ConfigFor(ctx, doc.HotelID)
		if err != nil {
			return err
		}
		if cfg.RequireFullCount {
			if uncounted := doc.UncountedSKUs(); len(uncounted) > 0 {
				return apperror.NewValidation("every line must be counted before approval").
					WithDetail("uncounted_skus", strings.Join(uncounted, ", ")).
					WithDetail("uncounted", len(uncounted))
			}
		}
		grace := time.Duration(cfg.BackdateGraceDays) * 24 * time.Hour
		if err := security.NewStrictClosePolicy(grace).CanApprove(ctx, doc.PeriodEnd); err != nil {
			return err
		}

		// Point-in-time capture: the approved figures are whatever the
		// ledger says inside this transaction, never a later view.
		if err := s.recompute(ctx, doc); err != nil {
			return err
		}
		if err := doc.CanApprove(ctx); err != nil {
			return err
		}

		now := time.Now().UTC()
		doc.MarkApproved(actor, now)
		audit.EnrichUpdatedBy(ctx, &doc.UpdatedBy)

		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update stocktake: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		if err := s.snapshots.Materialize(ctx, p.ID, s.buildSnapshots(doc, p)); err != nil {
			return err
		}

		p.MarkClosed(actor, now)
		if err := s.periodRepo.Update(ctx, p); err != nil {
			return fmt.Errorf("close period: %w", err)
		}

		if result, err = s.comparison(ctx, doc); err != nil {
			return err
		}

		if err := s.auditor.Record(ctx, "stocktake", doc.ID, audit.ActionApprove, map[string]any{
			"number":               doc.Number,
			"period":               p.Label(),
			"approval_version":     doc.ApprovalVersion,
			"total_variance_value": doc.TotalVarianceValue,
			"alerts":               len(result.Alerts),
		}); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		return s.publishApproval(ctx, doc, p, result)
	})
	if err != nil {
		return err
	}

	if result != nil {
		logger.Info(ctx, "stocktake approved",
			"stocktake_id", docID,
			"actor", actor,
			"variance_value", result.TotalVarianceValue,
			"alerts", len(result.Alerts),
		)
	}
	return nil
}

// checkRepeatApproval implements value-based idempotence: a repeated
// approval whose counts match the materialized snapshots succeeds as a
// no-op; any drift demands a reopen.
func (s *Service) checkRepeatApproval(ctx context.Context, doc *Stocktake, p *periods.Period) error {
	snaps, err := s.snapshots.GetForPeriod(ctx, p.ID)
	if err != nil {
		return err
	}

	for i := range doc.Lines {
		l := &doc.Lines[i]
		snap, ok := snaps[l.ItemID]
		if !ok ||
			!snap.ClosingFullUnits.Equal(l.CountedFull) ||
			!snap.ClosingPartialUnits.Equal(l.CountedPartial) {
			return apperror.NewInvalidStateTransition("stocktake", string(entity.StatusApproved), "re-approved").
				WithDetail("item_sku", l.ItemSKU).
				WithDetail("reason", "counts changed since approval; reopen the period first")
		}
	}

	logger.Info(ctx, "repeat approval with unchanged counts, no-op", "stocktake_id", doc.ID)
	return nil
}

func (s *Service) buildSnapshots(doc *Stocktake, p *periods.Period) []entity.Snapshot {
	snaps := make([]entity.Snapshot, 0, len(doc.Lines))
	for i := range doc.Lines {
		l := &doc.Lines[i]
		snap := entity.NewSnapshot(doc.ID, doc.ApprovalVersion, doc.HotelID, l.ItemID, p.ID)
		snap.ClosingFullUnits = l.CountedFull
		snap.ClosingPartialUnits = l.CountedPartial
		snap.ClosingPhysical = l.PhysicalUnits
		snap.ClosingValue = l.CountedValue
		// Container-valued lines carry physical units in CountedQty;
		// their servings figure is reporting-only and derived on demand.
		if l.ValuationMode != uom.ValuationPerContainer {
			snap.ClosingServings = l.CountedQty
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

func (s *Service) publishApproval(ctx context.Context, doc *Stocktake, p *periods.Period, result *ComparisonResult) error {
	evts := []events.DomainEvent{{
		AggregateType: "Stocktake",
		AggregateID:   doc.ID,
		EventType:     events.TypeStocktakeApproved,
		Payload: map[string]any{
			"hotel_id":             doc.HotelID,
			"number":               doc.Number,
			"period":               p.Label(),
			"period_start":         doc.PeriodStart.Format("2006-01-02"),
			"period_end":           doc.PeriodEnd.Format("2006-01-02"),
			"approval_version":     doc.ApprovalVersion,
			"total_counted_value":  doc.TotalCountedValue,
			"total_variance_value": doc.TotalVarianceValue,
		},
	}}
	for _, a := range result.Alerts {
		evts = append(evts, events.DomainEvent{
			AggregateType: "Stocktake",
			AggregateID:   doc.ID,
			EventType:     events.TypeVarianceAlert,
			Payload: map[string]any{
				"hotel_id": doc.HotelID,
				"rule":     a.Rule,
				"item_sku": a.ItemSKU,
				"severity": a.Severity,
				"message":  a.Message,
			},
		})
	}
	if err := s.publisher.PublishBatch(ctx, evts); err != nil {
		return fmt.Errorf("publish approval events: %w", err)
	}
	return nil
}

// List retrieves stocktakes with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Stocktake], error) {
	return s.repo.List(ctx, filter)
}

// --- periods.StocktakeGateway implementation ---

// IsApproved reports whether the period's stocktake is approved. False
// when no stocktake exists yet.
func (s *Service) IsApproved(ctx context.Context, p *periods.Period) (bool, error) {
	doc, err := s.repo.FindByDateRange(ctx, p.HotelID, p.StartDate, p.EndDate)
	if err != nil {
		return false, err
	}
	return doc != nil && doc.IsApproved(), nil
}

// RevertApproval flips the period's approved stocktake back to draft and
// clears the period's snapshots. Runs inside the reopen transaction with
// the period row already locked; the stocktake row is locked here.
func (s *Service) RevertApproval(ctx context.Context, p *periods.Period) error {
	doc, err := s.repo.FindByDateRange(ctx, p.HotelID, p.StartDate, p.EndDate)
	if err != nil {
		return err
	}
	if doc == nil {
		return apperror.NewNotFound("stocktake", p.Label())
	}
	if doc, err = s.repo.GetForUpdate(ctx, doc.ID); err != nil {
		return err
	}
	if !doc.IsApproved() {
		return apperror.NewInvalidStateTransition("stocktake", string(doc.Status), "reverted").
			WithDetail("stocktake_id", doc.ID.String())
	}

	doc.MarkDraft()
	audit.EnrichUpdatedBy(ctx, &doc.UpdatedBy)
	if err := s.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("revert stocktake: %w", err)
	}
	if err := s.snapshots.Clear(ctx, p.ID); err != nil {
		return err
	}

	if err := s.auditor.Record(ctx, "stocktake", doc.ID, audit.ActionReopen, map[string]any{
		"number":           doc.Number,
		"period":           p.Label(),
		"approval_version": doc.ApprovalVersion,
	}); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}

	logger.Info(ctx, "stocktake approval reverted",
		"stocktake_id", doc.ID,
		"period", p.Label(),
	)
	return nil
}

// HasLaterDraft reports whether a draft stocktake exists for a later
// period of the hotel.
func (s *Service) HasLaterDraft(ctx context.Context, p *periods.Period) (bool, error) {
	return s.repo.ExistsDraftAfter(ctx, p.HotelID, p.EndDate)
}

var _ periods.StocktakeGateway = (*Service)(nil)
