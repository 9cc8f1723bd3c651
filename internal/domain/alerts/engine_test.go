package alerts

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/domain/catalogs/hotel"
)

func testConfig(rules ...hotel.AlertRule) hotel.Config {
	cfg := hotel.DefaultConfig()
	cfg.AlertRules = rules
	return cfg
}

func TestEvaluate_LowStockRule(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	cfg := testConfig(hotel.AlertRule{
		Name:       "low-stock",
		Expression: "physical < low_stock_physical",
		Severity:   "warning",
		Message:    "physical stock below reorder threshold",
	})
	cfg.LowStockPhysical = decimal.NewFromInt(2)

	alerts, err := engine.Evaluate(cfg, []LineFacts{
		{SKU: "KEG-001", Physical: 1.5},
		{SKU: "KEG-002", Physical: 4},
	})
	require.NoError(t, err)

	require.Len(t, alerts, 1)
	assert.Equal(t, "low-stock", alerts[0].Rule)
	assert.Equal(t, "KEG-001", alerts[0].ItemSKU)
	assert.Equal(t, "warning", alerts[0].Severity)
}

func TestEvaluate_ShortageRuleUsesVarianceValue(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	cfg := testConfig(hotel.AlertRule{
		Name:       "large-shortage",
		Expression: "variance_value < -50.0",
		Severity:   "critical",
		Message:    "shortage above EUR 50",
	})

	alerts, err := engine.Evaluate(cfg, []LineFacts{
		{SKU: "GIN-007", VarianceValue: -61.20},
		{SKU: "GIN-008", VarianceValue: -3.10},
		{SKU: "GIN-009", VarianceValue: 12.00},
	})
	require.NoError(t, err)

	require.Len(t, alerts, 1)
	assert.Equal(t, "GIN-007", alerts[0].ItemSKU)
	assert.Equal(t, "critical", alerts[0].Severity)
}

func TestEvaluate_CategoryFilterInExpression(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	cfg := testConfig(hotel.AlertRule{
		Name:       "draught-variance",
		Expression: `category == "draught" && variance < -5.0`,
		Message:    "draught line over pour threshold",
	})

	alerts, err := engine.Evaluate(cfg, []LineFacts{
		{SKU: "KEG-001", Category: "draught", Variance: -8},
		{SKU: "BTL-001", Category: "bottled", Variance: -8},
	})
	require.NoError(t, err)

	require.Len(t, alerts, 1)
	assert.Equal(t, "KEG-001", alerts[0].ItemSKU)
	// empty severity defaults to warning
	assert.Equal(t, "warning", alerts[0].Severity)
}

func TestValidateRules_BadExpressionIsConfigurationError(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	err = engine.ValidateRules([]hotel.AlertRule{
		{Name: "broken", Expression: "variance <<< 1"},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
}

func TestValidateRules_NonBooleanExpressionRejected(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	err = engine.ValidateRules([]hotel.AlertRule{
		{Name: "not-a-predicate", Expression: "variance + 1.0"},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
}

func TestEvaluate_DefaultRulesCompile(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	cfg := hotel.DefaultConfig()
	require.NoError(t, engine.ValidateRules(cfg.AlertRules))

	alerts, err := engine.Evaluate(cfg, []LineFacts{
		{SKU: "SYR-001", Physical: 0.5, VarianceValue: -80},
	})
	require.NoError(t, err)
	assert.Len(t, alerts, 2, "both default rules should trigger")
}
