// Package uom resolves category-dependent unit-of-measure conversion rules.
// An item's single UOMFactor means different things per category (pints per
// keg, bottles per case, servings per bottle, ml per container); the rule
// table here is the one place that meaning is assigned. Call sites never
// branch on category strings themselves.
package uom

import (
	"fmt"

	"stockbook/internal/core/apperror"
)

// Category is the closed set of stock categories.
type Category string

const (
	CategoryDraught  Category = "draught"
	CategoryBottled  Category = "bottled"
	CategorySpirits  Category = "spirits"
	CategoryWine     Category = "wine"
	CategoryMinerals Category = "minerals"
)

// IsValid checks the category is known.
func (c Category) IsValid() bool {
	switch c {
	case CategoryDraught, CategoryBottled, CategorySpirits, CategoryWine, CategoryMinerals:
		return true
	}
	return false
}

// Subcategory refines the minerals category; empty for everything else.
type Subcategory string

const (
	SubcategoryNone       Subcategory = ""
	SubcategorySoftDrinks Subcategory = "soft-drinks"
	SubcategorySyrups     Subcategory = "syrups"
	SubcategoryJuices     Subcategory = "juices"
	SubcategoryCordials   Subcategory = "cordials"
	SubcategoryBagInBox   Subcategory = "bag-in-box"
	SubcategoryBulkJuices Subcategory = "bulk-juices"
)

// Kind selects the normalization arithmetic for a rule.
type Kind string

const (
	// KindKeg - full units are kegs, partial units are loose servings (pints)
	KindKeg Kind = "keg"
	// KindCase - full units are cases, partial units are loose bottles
	KindCase Kind = "case"
	// KindBottle - full and partial units are bottles; partial is a bottle
	// FRACTION (a half-open bottle is 0.5 bottles, never 0.5 x servings)
	KindBottle Kind = "bottle"
	// KindContainer - the container itself is the stock unit; factor is
	// ml per container and feeds consumption reporting only
	KindContainer Kind = "container"
)

// ValuationMode selects how a counted quantity is priced.
type ValuationMode string

const (
	// ValuationPerServing - value = servings x (unit_cost / factor)
	ValuationPerServing ValuationMode = "per-serving"
	// ValuationPerContainer - value = physical x unit_cost. Container
	// subcategories must never be priced through a derived per-serving
	// cost; mixing the two derivations is the classic bug here.
	ValuationPerContainer ValuationMode = "per-container"
)

// Rule is the resolved conversion strategy for one (category, subcategory).
type Rule struct {
	Kind      Kind
	Valuation ValuationMode
}

type ruleKey struct {
	category    Category
	subcategory Subcategory
}

// The rule table. Resolved once per lookup; unknown pairs are a
// configuration error, never a silent unity factor.
var rules = map[ruleKey]Rule{
	{CategoryDraught, SubcategoryNone}: {KindKeg, ValuationPerServing},
	{CategoryBottled, SubcategoryNone}: {KindCase, ValuationPerServing},
	{CategorySpirits, SubcategoryNone}: {KindBottle, ValuationPerServing},
	{CategoryWine, SubcategoryNone}:    {KindBottle, ValuationPerServing},

	{CategoryMinerals, SubcategorySoftDrinks}: {KindCase, ValuationPerServing},
	{CategoryMinerals, SubcategoryJuices}:     {KindCase, ValuationPerServing},
	{CategoryMinerals, SubcategoryCordials}:   {KindCase, ValuationPerServing},

	// Per-container valuation for container-sized subcategories is a
	// business decision pending confirmation with finance; see DESIGN.md.
	{CategoryMinerals, SubcategorySyrups}:     {KindContainer, ValuationPerContainer},
	{CategoryMinerals, SubcategoryBagInBox}:   {KindContainer, ValuationPerContainer},
	{CategoryMinerals, SubcategoryBulkJuices}: {KindContainer, ValuationPerContainer},
}

// Resolve returns the conversion rule for a (category, subcategory) pair.
// Unknown pairs fail with ConfigurationError.
func Resolve(category Category, subcategory Subcategory) (Rule, error) {
	rule, ok := rules[ruleKey{category, subcategory}]
	if !ok {
		return Rule{}, apperror.NewConfiguration(
			fmt.Sprintf("no unit-of-measure rule for category %q subcategory %q", category, subcategory)).
			WithDetail("category", string(category)).
			WithDetail("subcategory", string(subcategory))
	}
	return rule, nil
}

// ValidatePair checks a (category, subcategory) pair resolves. Used by
// catalog validation so misconfigured items are rejected at save time,
// not discovered during an approval.
func ValidatePair(category Category, subcategory Subcategory) error {
	_, err := Resolve(category, subcategory)
	return err
}

// Subcategories returns the valid subcategories for a category.
// Only minerals have any.
func Subcategories(category Category) []Subcategory {
	if category != CategoryMinerals {
		return nil
	}
	return []Subcategory{
		SubcategorySoftDrinks, SubcategorySyrups, SubcategoryJuices,
		SubcategoryCordials, SubcategoryBagInBox, SubcategoryBulkJuices,
	}
}
