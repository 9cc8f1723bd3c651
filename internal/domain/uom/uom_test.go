package uom

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/types"
)

func qty(s string) types.Quantity {
	return types.MustQuantity(s)
}

func TestResolve_KnownPairs(t *testing.T) {
	tests := []struct {
		category    Category
		subcategory Subcategory
		kind        Kind
		valuation   ValuationMode
	}{
		{CategoryDraught, SubcategoryNone, KindKeg, ValuationPerServing},
		{CategoryBottled, SubcategoryNone, KindCase, ValuationPerServing},
		{CategorySpirits, SubcategoryNone, KindBottle, ValuationPerServing},
		{CategoryWine, SubcategoryNone, KindBottle, ValuationPerServing},
		{CategoryMinerals, SubcategorySoftDrinks, KindCase, ValuationPerServing},
		{CategoryMinerals, SubcategoryJuices, KindCase, ValuationPerServing},
		{CategoryMinerals, SubcategoryCordials, KindCase, ValuationPerServing},
		{CategoryMinerals, SubcategorySyrups, KindContainer, ValuationPerContainer},
		{CategoryMinerals, SubcategoryBagInBox, KindContainer, ValuationPerContainer},
		{CategoryMinerals, SubcategoryBulkJuices, KindContainer, ValuationPerContainer},
	}

	for _, tt := range tests {
		rule, err := Resolve(tt.category, tt.subcategory)
		require.NoError(t, err, "resolve %s/%s", tt.category, tt.subcategory)
		assert.Equal(t, tt.kind, rule.Kind)
		assert.Equal(t, tt.valuation, rule.Valuation)
	}
}

func TestResolve_UnknownPairIsConfigurationError(t *testing.T) {
	tests := []struct {
		name        string
		category    Category
		subcategory Subcategory
	}{
		{"unknown category", Category("cigars"), SubcategoryNone},
		{"minerals without subcategory", CategoryMinerals, SubcategoryNone},
		{"subcategory on non-minerals", CategoryDraught, SubcategorySyrups},
		{"unknown subcategory", CategoryMinerals, Subcategory("energy-drinks")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.category, tt.subcategory)
			require.Error(t, err)
			assert.True(t, apperror.IsConfiguration(err))
		})
	}
}

// Draught: 88 pints per keg, 1 full keg + 50 loose pints.
func TestNormalize_Draught(t *testing.T) {
	rule, err := Resolve(CategoryDraught, SubcategoryNone)
	require.NoError(t, err)

	count, err := rule.Normalize(qty("88"), qty("1"), qty("50"))
	require.NoError(t, err)

	assert.True(t, qty("138").Equal(count.Servings), "servings = %s", count.Servings)
	assert.Equal(t, "1.568", count.Physical.Round(3).String(), "kegs")
}

// Bottled: 12 bottles per case, 3 cases + 8 loose bottles.
func TestNormalize_BottledCase(t *testing.T) {
	rule, err := Resolve(CategoryBottled, SubcategoryNone)
	require.NoError(t, err)

	count, err := rule.Normalize(qty("12"), qty("3"), qty("8"))
	require.NoError(t, err)

	assert.True(t, qty("44").Equal(count.Servings), "servings = %s", count.Servings)
	assert.Equal(t, "3.667", count.Physical.Round(3).String(), "cases")
}

// Spirits: partial units are bottle fractions, never literal shots.
// Half an open bottle of a 28-shot spirit is 0.5 bottles = 14 shots.
func TestNormalize_SpiritsPartialIsBottleFraction(t *testing.T) {
	rule, err := Resolve(CategorySpirits, SubcategoryNone)
	require.NoError(t, err)

	count, err := rule.Normalize(qty("28"), qty("2"), qty("0.5"))
	require.NoError(t, err)

	assert.True(t, qty("70").Equal(count.Servings), "servings = %s", count.Servings)
	assert.True(t, qty("2.5").Equal(count.Physical), "bottles = %s", count.Physical)
}

func TestNormalize_WineCountedInBottles(t *testing.T) {
	rule, err := Resolve(CategoryWine, SubcategoryNone)
	require.NoError(t, err)

	// 6 servings per bottle, 11 bottles + a quarter of an open one
	count, err := rule.Normalize(qty("6"), qty("11"), qty("0.25"))
	require.NoError(t, err)

	assert.True(t, qty("67.5").Equal(count.Servings))
	assert.True(t, qty("11.25").Equal(count.Physical))
}

func TestNormalize_ContainerIsPhysicalOnly(t *testing.T) {
	rule, err := Resolve(CategoryMinerals, SubcategorySyrups)
	require.NoError(t, err)

	count, err := rule.Normalize(qty("5000"), qty("3"), qty("0.5"))
	require.NoError(t, err)

	assert.True(t, qty("3.5").Equal(count.Physical))
	assert.True(t, count.Servings.IsZero(), "servings are derived separately for containers")
}

func TestNormalize_ZeroFactorRejected(t *testing.T) {
	for _, category := range []Category{CategoryDraught, CategoryBottled, CategorySpirits} {
		rule, err := Resolve(category, SubcategoryNone)
		require.NoError(t, err)

		_, err = rule.Normalize(decimal.Zero, qty("1"), qty("0"))
		require.Error(t, err, "category %s", category)
		assert.True(t, apperror.IsConfiguration(err))
	}
}

// Normalize then Denormalize must return the original raw count within
// one unit of rounding tolerance.
func TestDenormalize_RoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		category    Category
		subcategory Subcategory
		factor      string
		full        string
		partial     string
	}{
		{"draught keg", CategoryDraught, SubcategoryNone, "88", "1", "50"},
		{"bottled case", CategoryBottled, SubcategoryNone, "12", "3", "8"},
		{"soft drink case", CategoryMinerals, SubcategorySoftDrinks, "24", "10", "13"},
		{"spirits bottle", CategorySpirits, SubcategoryNone, "28", "2", "0.5"},
		{"wine bottle", CategoryWine, SubcategoryNone, "6", "11", "0.25"},
		{"syrup container", CategoryMinerals, SubcategorySyrups, "5000", "3", "0.5"},
		{"bag in box", CategoryMinerals, SubcategoryBagInBox, "10000", "2", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := Resolve(tt.category, tt.subcategory)
			require.NoError(t, err)

			count, err := rule.Normalize(qty(tt.factor), qty(tt.full), qty(tt.partial))
			require.NoError(t, err)

			full, partial, err := rule.Denormalize(qty(tt.factor), count)
			require.NoError(t, err)

			one := decimal.NewFromInt(1)
			assert.True(t, full.Sub(qty(tt.full)).Abs().LessThanOrEqual(one),
				"full: got %s want %s", full, tt.full)
			assert.True(t, partial.Sub(qty(tt.partial)).Abs().LessThanOrEqual(one),
				"partial: got %s want %s", partial, tt.partial)
		})
	}
}

// Container-valued syrup: one EUR 12.15 container closes at EUR 12.15,
// never at servings x per-serving cost.
func TestValue_SyrupPerContainer(t *testing.T) {
	rule, err := Resolve(CategoryMinerals, SubcategorySyrups)
	require.NoError(t, err)

	count, err := rule.Normalize(qty("5000"), qty("1"), qty("0"))
	require.NoError(t, err)

	value, err := rule.Value(count, types.MustMoney("12.15"), qty("5000"))
	require.NoError(t, err)

	assert.True(t, types.MustMoney("12.15").Equal(value), "value = %s", value)
}

func TestValue_DraughtPerServing(t *testing.T) {
	rule, err := Resolve(CategoryDraught, SubcategoryNone)
	require.NoError(t, err)

	// EUR 176 keg at 88 pints -> EUR 2 per pint; 138 pints -> EUR 276
	count, err := rule.Normalize(qty("88"), qty("1"), qty("50"))
	require.NoError(t, err)

	value, err := rule.Value(count, types.MustMoney("176"), qty("88"))
	require.NoError(t, err)

	assert.True(t, types.MustMoney("276").Equal(value), "value = %s", value)
}

func TestValuationCost(t *testing.T) {
	perServing, err := Resolve(CategoryDraught, SubcategoryNone)
	require.NoError(t, err)
	cost, err := perServing.ValuationCost(types.MustMoney("176"), qty("88"))
	require.NoError(t, err)
	assert.True(t, types.MustMoney("2").Equal(cost))

	perContainer, err := Resolve(CategoryMinerals, SubcategoryBagInBox)
	require.NoError(t, err)
	cost, err = perContainer.ValuationCost(types.MustMoney("45.20"), qty("10000"))
	require.NoError(t, err)
	assert.True(t, types.MustMoney("45.20").Equal(cost))
}

func TestConsumptionServings(t *testing.T) {
	rule, err := Resolve(CategoryMinerals, SubcategorySyrups)
	require.NoError(t, err)

	// 5L container, 50ml serving -> 100 servings per container
	servings, err := rule.ConsumptionServings(qty("5000"), qty("2"), qty("50"))
	require.NoError(t, err)
	assert.True(t, qty("200").Equal(servings))

	// reporting figure only; refuse on per-serving rules
	caseRule, err := Resolve(CategoryBottled, SubcategoryNone)
	require.NoError(t, err)
	_, err = caseRule.ConsumptionServings(qty("12"), qty("1"), qty("50"))
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
}
