// Package stocktake provides the Stocktake document: the period-end count
// of every active item, its comparison against expected stock derived from
// the movement ledger, and the approval that freezes the period.
//
// A stocktake belongs to a period by (hotel, period start, period end) date
// range. There is deliberately no period-id column: periods and stocktakes
// are created independently and identifiers are never assumed shared.
package stocktake

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/catalogs/item"
	"stockbook/internal/domain/uom"
)

// Stocktake is one period-end count document for one hotel.
type Stocktake struct {
	entity.Document

	// PeriodStart and PeriodEnd identify the period this stocktake belongs
	// to, both days inclusive. The canonical lookup key together with HotelID.
	PeriodStart time.Time `db:"period_start" json:"periodStart"`
	PeriodEnd   time.Time `db:"period_end" json:"periodEnd"`

	// Totals recomputed from lines on every recalculation
	TotalExpectedValue types.Money `db:"total_expected_value" json:"totalExpectedValue"`
	TotalCountedValue  types.Money `db:"total_counted_value" json:"totalCountedValue"`
	TotalVarianceValue types.Money `db:"total_variance_value" json:"totalVarianceValue"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one item's row on the stocktake. Conversion factor, cost and
// category are frozen from the catalog when the line is built, so later
// catalog edits never rewrite an approved period.
//
// Quantity columns are in the item's normalized ledger unit: servings for
// per-serving valued items, whole containers for per-container valued ones.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`
	ItemID id.ID `db:"item_id" json:"itemId"`

	// Frozen catalog facts
	ItemSKU       string            `db:"item_sku" json:"itemSku"`
	ItemName      string            `db:"item_name" json:"itemName"`
	Category      uom.Category      `db:"category" json:"category"`
	Subcategory   uom.Subcategory   `db:"subcategory" json:"subcategory"`
	UOMFactor     types.Quantity    `db:"uom_factor" json:"uomFactor"`
	UnitCost      types.Money       `db:"unit_cost" json:"unitCost"`
	ValuationMode uom.ValuationMode `db:"valuation_mode" json:"valuationMode"`

	// Opening balance seeded from the prior period's closing snapshot.
	// OpeningMissingSnapshot marks a zero opening that came from a gap in
	// the snapshot register rather than an actual empty cellar.
	OpeningQty             types.Quantity `db:"opening_qty" json:"openingQty"`
	OpeningMissingSnapshot bool           `db:"opening_missing_snapshot" json:"openingMissingSnapshot"`

	// Ledger totals captured at the last recalculation
	Purchases    types.Quantity `db:"purchases" json:"purchases"`
	Sales        types.Quantity `db:"sales" json:"sales"`
	Waste        types.Quantity `db:"waste" json:"waste"`
	TransfersIn  types.Quantity `db:"transfers_in" json:"transfersIn"`
	TransfersOut types.Quantity `db:"transfers_out" json:"transfersOut"`
	Adjustments  types.Quantity `db:"adjustments" json:"adjustments"`

	// Manual corrections for feed errors. Nil means use the ledger figure;
	// the ledger columns above keep the raw totals either way.
	OverridePurchases *types.Quantity `db:"override_purchases" json:"overridePurchases,omitempty"`
	OverrideSales     *types.Quantity `db:"override_sales" json:"overrideSales,omitempty"`
	OverrideWaste     *types.Quantity `db:"override_waste" json:"overrideWaste,omitempty"`

	// Raw staff count: full containers plus the category-dependent partial
	// (loose servings for kegs/cases, a bottle fraction for spirits/wine,
	// a container fraction for syrup-likes)
	CountedFull    types.Quantity `db:"counted_full" json:"countedFull"`
	CountedPartial types.Quantity `db:"counted_partial" json:"countedPartial"`
	Counted        bool           `db:"counted" json:"counted"`
	CountedAt      *time.Time     `db:"counted_at" json:"countedAt,omitempty"`
	CountedBy      string         `db:"counted_by" json:"countedBy,omitempty"`

	// Derived figures, recomputed by Compute
	ExpectedQty   types.Quantity `db:"expected_qty" json:"expectedQty"`
	CountedQty    types.Quantity `db:"counted_qty" json:"countedQty"`
	VarianceQty   types.Quantity `db:"variance_qty" json:"varianceQty"`
	PhysicalUnits types.Quantity `db:"physical_units" json:"physicalUnits"`

	ValuationCost types.Money `db:"valuation_cost" json:"valuationCost"`
	ExpectedValue types.Money `db:"expected_value" json:"expectedValue"`
	CountedValue  types.Money `db:"counted_value" json:"countedValue"`
	VarianceValue types.Money `db:"variance_value" json:"varianceValue"`
}

// NewStocktake creates a draft stocktake for a period's date range.
func NewStocktake(hotelID id.ID, periodStart, periodEnd time.Time) *Stocktake {
	return &Stocktake{
		Document:    entity.NewDocument(hotelID),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Lines:       make([]Line, 0),
	}
}

// AddLine appends a line for an item, freezing its catalog facts.
func (st *Stocktake) AddLine(it *item.Item, openingQty types.Quantity, missingSnapshot bool) {
	st.Lines = append(st.Lines, Line{
		LineID:                 id.New(),
		LineNo:                 len(st.Lines) + 1,
		ItemID:                 it.ID,
		ItemSKU:                it.SKU(),
		ItemName:               it.Name,
		Category:               it.Category,
		Subcategory:            it.Subcategory,
		UOMFactor:              it.UOMFactor,
		UnitCost:               it.UnitCost,
		OpeningQty:             openingQty,
		OpeningMissingSnapshot: missingSnapshot,
	})
}

// LineByItem returns the line for an item, nil when absent.
func (st *Stocktake) LineByItem(itemID id.ID) *Line {
	for i := range st.Lines {
		if st.Lines[i].ItemID == itemID {
			return &st.Lines[i]
		}
	}
	return nil
}

// SetCount records a raw staff count on an item's line.
func (st *Stocktake) SetCount(itemID id.ID, full, partial types.Quantity, countedBy string, at time.Time) error {
	line := st.LineByItem(itemID)
	if line == nil {
		return apperror.NewNotFound("stocktake line", itemID.String())
	}
	if full.IsNegative() || partial.IsNegative() {
		return apperror.NewValidation("counted quantities cannot be negative").
			WithDetail("item_sku", line.ItemSKU)
	}

	line.CountedFull = full
	line.CountedPartial = partial
	line.Counted = true
	line.CountedAt = &at
	line.CountedBy = countedBy
	return nil
}

// EffectivePurchases is the purchases figure the expected formula uses:
// the override when set, otherwise the ledger total.
func (l *Line) EffectivePurchases() types.Quantity {
	if l.OverridePurchases != nil {
		return *l.OverridePurchases
	}
	return l.Purchases
}

// EffectiveSales mirrors EffectivePurchases for sales.
func (l *Line) EffectiveSales() types.Quantity {
	if l.OverrideSales != nil {
		return *l.OverrideSales
	}
	return l.Sales
}

// EffectiveWaste mirrors EffectivePurchases for waste.
func (l *Line) EffectiveWaste() types.Quantity {
	if l.OverrideWaste != nil {
		return *l.OverrideWaste
	}
	return l.Waste
}

// Compute recalculates the line's derived figures:
//
//	expected = opening + purchases + transfers_in - sales - waste - transfers_out + adjustments
//	counted  = normalized staff count
//	variance = counted - expected
//
// All three quantities share the line's ledger unit, and every value is
// quantity times the frozen valuation cost.
func (l *Line) Compute() error {
	rule, err := uom.Resolve(l.Category, l.Subcategory)
	if err != nil {
		return err
	}
	l.ValuationMode = rule.Valuation

	l.ExpectedQty = l.OpeningQty.
		Add(l.EffectivePurchases()).
		Add(l.TransfersIn).
		Sub(l.EffectiveSales()).
		Sub(l.EffectiveWaste()).
		Sub(l.TransfersOut).
		Add(l.Adjustments)

	count, err := rule.Normalize(l.UOMFactor, l.CountedFull, l.CountedPartial)
	if err != nil {
		return err
	}
	l.CountedQty = rule.NormalizedQuantity(count)
	l.PhysicalUnits = count.Physical
	l.VarianceQty = l.CountedQty.Sub(l.ExpectedQty)

	cost, err := rule.ValuationCost(l.UnitCost, l.UOMFactor)
	if err != nil {
		return err
	}
	l.ValuationCost = cost
	l.ExpectedValue = rule.ValueQuantity(l.ExpectedQty, cost)
	l.CountedValue = rule.ValueQuantity(l.CountedQty, cost)
	l.VarianceValue = l.CountedValue.Sub(l.ExpectedValue)
	return nil
}

// RecalculateTotals refreshes the document totals from its lines.
func (st *Stocktake) RecalculateTotals() {
	st.TotalExpectedValue = decimal.Zero
	st.TotalCountedValue = decimal.Zero
	st.TotalVarianceValue = decimal.Zero

	for i := range st.Lines {
		st.TotalExpectedValue = st.TotalExpectedValue.Add(st.Lines[i].ExpectedValue)
		st.TotalCountedValue = st.TotalCountedValue.Add(st.Lines[i].CountedValue)
		st.TotalVarianceValue = st.TotalVarianceValue.Add(st.Lines[i].VarianceValue)
	}
}

// UncountedSKUs lists lines still missing a count.
func (st *Stocktake) UncountedSKUs() []string {
	var skus []string
	for i := range st.Lines {
		if !st.Lines[i].Counted {
			skus = append(skus, st.Lines[i].ItemSKU)
		}
	}
	return skus
}

// Validate implements entity.Validatable.
func (st *Stocktake) Validate(ctx context.Context) error {
	if err := st.Document.Validate(ctx); err != nil {
		return err
	}

	if st.PeriodStart.IsZero() || st.PeriodEnd.IsZero() {
		return apperror.NewValidation("period start and end are required")
	}
	if st.PeriodEnd.Before(st.PeriodStart) {
		return apperror.NewValidation("period end cannot precede period start").
			WithDetail("period_start", st.PeriodStart.Format("2006-01-02")).
			WithDetail("period_end", st.PeriodEnd.Format("2006-01-02"))
	}
	return nil
}
