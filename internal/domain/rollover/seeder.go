// Package rollover seeds a new period's opening quantities from the prior
// period's closing snapshots. The historical failure mode this package
// exists to prevent: a missing prior snapshot silently producing a zero
// opening balance that cascades into wrong variance and wrong cost of
// sales for an entire month. Missing snapshots here are loud - a warning
// in the result, a flag on the line, and an outbox event.
package rollover

import (
	"context"
	"fmt"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/catalogs/item"
	"stockbook/internal/domain/events"
	"stockbook/internal/domain/periods"
	"stockbook/internal/domain/registers/snapshot"
	"stockbook/pkg/logger"
)

// Opening is one item's seeded opening balance.
type Opening struct {
	ItemID id.ID `json:"itemId"`

	// Qty in the item's normalized ledger unit (servings, or containers
	// for container-valued subcategories)
	Qty types.Quantity `json:"qty"`

	// MissingSnapshot marks an opening defaulted to zero because the
	// prior period had no closing balance for the item
	MissingSnapshot bool `json:"missingSnapshot"`
}

// Result reports the seeded openings and every advisory condition hit.
// Warnings are data: returned to the caller, persisted on lines and
// emitted as events - never only a log line.
type Result struct {
	PriorPeriod *periods.Period      `json:"priorPeriod,omitempty"`
	Openings    map[id.ID]Opening    `json:"openings"`
	Warnings    []*apperror.AppError `json:"warnings,omitempty"`
}

// Seeder computes opening balances for a new period's stocktake.
type Seeder struct {
	periodRepo periods.Repository
	snapshots  snapshot.Repository
	publisher  events.Publisher
}

// NewSeeder creates a rollover seeder.
func NewSeeder(periodRepo periods.Repository, snapshots snapshot.Repository, publisher events.Publisher) *Seeder {
	return &Seeder{
		periodRepo: periodRepo,
		snapshots:  snapshots,
		publisher:  publisher,
	}
}

// SeedOpenings resolves the prior period by explicit date ordering (never
// by assuming shared identifiers) and derives each item's opening from its
// prior closing snapshot, re-normalized with the item's CURRENT conversion
// rule so openings carry the new period's unit meaning.
//
// Items without a prior snapshot open at zero with a visible warning.
// A hotel's first-ever period opens everything at zero with a single
// prior-period-missing warning instead of one per item.
func (s *Seeder) SeedOpenings(ctx context.Context, p *periods.Period, items []*item.Item) (*Result, error) {
	result := &Result{
		Openings: make(map[id.ID]Opening, len(items)),
	}

	prior, err := s.periodRepo.FindPrior(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("find prior period: %w", err)
	}

	if prior == nil {
		for _, it := range items {
			result.Openings[it.ID] = Opening{ItemID: it.ID}
		}
		warn := apperror.NewBusinessRule(apperror.CodeMissingPriorSnapshot,
			"no prior period exists; all openings start at zero")
		warn.Severity = apperror.SeverityWarning
		result.Warnings = append(result.Warnings, warn)
		logger.Warn(ctx, "first-ever period, openings start at zero",
			"period_id", p.ID, "items", len(items))
		return result, nil
	}
	result.PriorPeriod = prior

	closings, err := s.snapshots.GetForPeriod(ctx, prior.ID)
	if err != nil {
		return nil, fmt.Errorf("load prior snapshots: %w", err)
	}

	var missingEvents []events.DomainEvent
	for _, it := range items {
		snap, ok := closings[it.ID]
		if !ok {
			result.Openings[it.ID] = Opening{ItemID: it.ID, MissingSnapshot: true}
			result.Warnings = append(result.Warnings,
				apperror.NewMissingPriorSnapshot(it.SKU(), p.StartDate.Format("2006-01-02")))
			missingEvents = append(missingEvents, events.DomainEvent{
				AggregateType: "Period",
				AggregateID:   p.ID,
				EventType:     events.TypeMissingPriorSnapshot,
				Payload: map[string]any{
					"hotel_id":        p.HotelID,
					"item_id":         it.ID,
					"item_sku":        it.SKU(),
					"prior_period_id": prior.ID,
				},
			})
			continue
		}

		rule, err := it.Rule()
		if err != nil {
			// Unknown uom configuration aborts the whole seeding run;
			// the engine never guesses a conversion factor.
			return nil, withItem(err, it)
		}

		// Re-normalize the raw closing count with the item's current
		// factor. The snapshot's stored servings figure is a reporting
		// convenience and deliberately not trusted here.
		count, err := rule.Normalize(it.UOMFactor, snap.ClosingFullUnits, snap.ClosingPartialUnits)
		if err != nil {
			return nil, withItem(err, it)
		}

		result.Openings[it.ID] = Opening{
			ItemID: it.ID,
			Qty:    rule.NormalizedQuantity(count),
		}
	}

	if len(missingEvents) > 0 {
		if err := s.publisher.PublishBatch(ctx, missingEvents); err != nil {
			return nil, fmt.Errorf("publish missing snapshot events: %w", err)
		}
	}

	logger.Info(ctx, "seeded opening balances",
		"period_id", p.ID,
		"prior_period_id", prior.ID,
		"items", len(items),
		"missing_snapshots", len(missingEvents),
	)
	return result, nil
}

func withItem(err error, it *item.Item) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("item_sku", it.SKU()).WithDetail("item_id", it.ID.String())
	}
	return err
}
