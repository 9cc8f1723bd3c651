package uom

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/types"
)

// Count is a physical count normalized through a conversion rule.
type Count struct {
	// Servings is the quantity in the item's normalized consumption unit
	// (pints, bottles, shots). For container rules this stays zero;
	// consumption figures for containers come from ConsumptionServings.
	Servings types.Quantity

	// Physical is the quantity in whole stock containers (kegs, cases,
	// bottles, boxes), used for low-stock alerting and container valuation.
	Physical types.Quantity
}

// Normalize converts a raw staff count (full containers + partial remainder)
// into normalized quantities per the rule's arithmetic.
func (r Rule) Normalize(factor, full, partial types.Quantity) (Count, error) {
	switch r.Kind {
	case KindKeg, KindCase:
		// full kegs/cases plus loose servings/bottles
		if !factor.IsPositive() {
			return Count{}, badFactor(r, factor)
		}
		return Count{
			Servings: full.Mul(factor).Add(partial),
			Physical: full.Add(partial.Div(factor)),
		}, nil

	case KindBottle:
		// partial is a bottle fraction: half an open bottle is 0.5 bottles
		if !factor.IsPositive() {
			return Count{}, badFactor(r, factor)
		}
		physical := full.Add(partial)
		return Count{
			Servings: physical.Mul(factor),
			Physical: physical,
		}, nil

	case KindContainer:
		// counted and valued in containers; factor (ml per container)
		// is not consulted here
		return Count{
			Physical: full.Add(partial),
		}, nil
	}
	return Count{}, apperror.NewConfiguration(fmt.Sprintf("unknown rule kind %q", r.Kind))
}

// Denormalize inverts Normalize: given a normalized count, recover the raw
// (full, partial) representation. Round-trips within one rounding unit.
func (r Rule) Denormalize(factor types.Quantity, count Count) (full, partial types.Quantity, err error) {
	switch r.Kind {
	case KindKeg, KindCase:
		if !factor.IsPositive() {
			return decimal.Zero, decimal.Zero, badFactor(r, factor)
		}
		full = count.Servings.Div(factor).Floor()
		partial = count.Servings.Sub(full.Mul(factor))
		return full, partial, nil

	case KindBottle, KindContainer:
		full = count.Physical.Floor()
		partial = count.Physical.Sub(full)
		return full, partial, nil
	}
	return decimal.Zero, decimal.Zero, apperror.NewConfiguration(fmt.Sprintf("unknown rule kind %q", r.Kind))
}

// NormalizedQuantity expresses a count in the rule's ledger unit: servings
// for per-serving rules, whole containers for container rules. Opening,
// expected and counted quantities on stocktake lines are all in this unit,
// so the variance formula never mixes unit systems.
func (r Rule) NormalizedQuantity(c Count) types.Quantity {
	if r.Kind == KindContainer {
		return c.Physical
	}
	return c.Servings
}

// ValuationCost derives the per-unit cost used on stocktake lines.
// Per-serving rules spread the container cost over its servings; container
// rules keep the container cost as-is.
func (r Rule) ValuationCost(unitCost types.Money, factor types.Quantity) (types.Money, error) {
	switch r.Valuation {
	case ValuationPerServing:
		if !factor.IsPositive() {
			return decimal.Zero, badFactor(r, factor)
		}
		return unitCost.Div(factor), nil
	case ValuationPerContainer:
		return unitCost, nil
	}
	return decimal.Zero, apperror.NewConfiguration(fmt.Sprintf("unknown valuation mode %q", r.Valuation))
}

// Value prices a normalized count. Per-container rules price physical units
// with the raw container cost; everything else prices servings with the
// derived per-serving cost.
func (r Rule) Value(count Count, unitCost types.Money, factor types.Quantity) (types.Money, error) {
	if r.Valuation == ValuationPerContainer {
		return count.Physical.Mul(unitCost), nil
	}
	cost, err := r.ValuationCost(unitCost, factor)
	if err != nil {
		return decimal.Zero, err
	}
	return count.Servings.Mul(cost), nil
}

// ValueQuantity prices an already-normalized quantity (servings for
// per-serving rules, physical containers for per-container rules) without
// a full Count. Used for expected-value math where only the servings
// figure exists.
func (r Rule) ValueQuantity(qty types.Quantity, valuationCost types.Money) types.Money {
	return qty.Mul(valuationCost)
}

// ConsumptionServings derives the reporting-only servings figure for
// container rules: container volume over serving size. Never used for
// valuation.
func (r Rule) ConsumptionServings(factor, physical, servingML types.Quantity) (types.Quantity, error) {
	if r.Kind != KindContainer {
		return decimal.Zero, apperror.NewConfiguration(
			fmt.Sprintf("consumption servings only apply to container rules, got %q", r.Kind))
	}
	if !factor.IsPositive() || !servingML.IsPositive() {
		return decimal.Zero, apperror.NewConfiguration("container volume and serving size must be positive").
			WithDetail("factor", factor.String()).
			WithDetail("serving_ml", servingML.String())
	}
	return physical.Mul(factor).Div(servingML), nil
}

func badFactor(r Rule, factor types.Quantity) *apperror.AppError {
	return apperror.NewConfiguration(
		fmt.Sprintf("conversion factor must be positive for %s rules", r.Kind)).
		WithDetail("factor", factor.String())
}
