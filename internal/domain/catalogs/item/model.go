// Package item provides the stock Item catalog.
// Items are read-mostly to the engine: the stocktake freezes each item's
// conversion factor and cost onto its lines at compute time, so later
// catalog edits never rewrite history.
package item

import (
	"context"

	"github.com/shopspring/decimal"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/uom"
)

// Item represents one stock-keeping unit (a keg SKU, a cased bottle SKU,
// a syrup container SKU).
type Item struct {
	entity.Catalog

	// Category drives unit-of-measure interpretation (closed set)
	Category uom.Category `db:"category" json:"category"`

	// Subcategory refines minerals; empty otherwise
	Subcategory uom.Subcategory `db:"subcategory" json:"subcategory"`

	// UnitCost is the cost of one container (keg, case, bottle, box)
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// UOMFactor is the category-dependent conversion factor: servings per
	// container for draught/bottled/spirits/wine and cased minerals, ml per
	// container for syrup-like subcategories
	UOMFactor types.Quantity `db:"uom_factor" json:"uomFactor"`

	// SupplierID is the usual supplier, when known
	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`

	// Active items appear on new stocktakes; inactive ones are retained
	// for history only
	Active bool `db:"active" json:"active"`
}

// NewItem creates a new Item with required fields. Code doubles as the SKU.
func NewItem(sku, name string, category uom.Category, subcategory uom.Subcategory) *Item {
	return &Item{
		Catalog:     entity.NewCatalog(sku, name),
		Category:    category,
		Subcategory: subcategory,
		UnitCost:    decimal.Zero,
		UOMFactor:   decimal.Zero,
		Active:      true,
	}
}

// SKU returns the item's stock-keeping unit code.
func (i *Item) SKU() string {
	return i.Code
}

// Rule resolves the item's unit-of-measure conversion rule.
func (i *Item) Rule() (uom.Rule, error) {
	return uom.Resolve(i.Category, i.Subcategory)
}

// Validate implements entity.Validatable interface.
// An item whose category pair does not resolve in the rule table is
// rejected here rather than discovered mid-approval.
func (i *Item) Validate(ctx context.Context) error {
	if err := i.Catalog.Validate(ctx); err != nil {
		return err
	}

	if err := uom.ValidatePair(i.Category, i.Subcategory); err != nil {
		return err
	}

	if i.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost cannot be negative").
			WithDetail("field", "unitCost")
	}

	// Every rule consults the factor somewhere (serving conversion or
	// container volume), so zero is never a usable value.
	if !i.UOMFactor.IsPositive() {
		return apperror.NewValidation("uom factor must be positive").
			WithDetail("field", "uomFactor").
			WithDetail("value", i.UOMFactor.String())
	}

	return nil
}
