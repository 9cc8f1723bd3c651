// Package hotel provides the Hotel catalog.
// Every period, movement, stocktake and snapshot is scoped to one hotel;
// per-hotel business configuration lives here rather than in scattered
// literals at call sites.
package hotel

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/types"
)

// ClosePolicyMode selects how the hotel treats writes into closed periods.
type ClosePolicyMode string

const (
	// ClosePolicyStrict rejects ledger entries dated inside a closed period
	ClosePolicyStrict ClosePolicyMode = "strict"
	// ClosePolicyFlexible accepts them with a warning; closed totals stay frozen
	ClosePolicyFlexible ClosePolicyMode = "flexible"
)

// AlertRule is a per-hotel variance/low-stock rule. Expression is a CEL
// expression over the computed line variables; see the alerts package for
// the variable set.
type AlertRule struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Severity   string `json:"severity"` // info, warning, critical
	Message    string `json:"message"`
}

// Config is the per-hotel business configuration, stored as JSONB on the
// hotel row. Missing fields fall back to the documented defaults.
type Config struct {
	// ClosePolicy for late movements into closed periods (default strict)
	ClosePolicy ClosePolicyMode `json:"closePolicy"`

	// BackdateGraceDays caps backdated stocktake approvals (default 7)
	BackdateGraceDays int `json:"backdateGraceDays"`

	// RequireFullCount demands every line counted before approval (default true)
	RequireFullCount bool `json:"requireFullCount"`

	// SyrupServingML is the dispensed serving size for syrup consumption
	// reporting (default 50)
	SyrupServingML types.Quantity `json:"syrupServingML"`

	// JuiceServingML is the serving size for bulk-juice and bag-in-box
	// consumption reporting (default 250)
	JuiceServingML types.Quantity `json:"juiceServingML"`

	// LowStockPhysical is the container threshold for low-stock alerts
	// (default 2)
	LowStockPhysical types.Quantity `json:"lowStockPhysical"`

	// AlertRules evaluated against every computed stocktake line
	AlertRules []AlertRule `json:"alertRules,omitempty"`
}

// DefaultConfig returns the documented fallback configuration.
func DefaultConfig() Config {
	return Config{
		ClosePolicy:       ClosePolicyStrict,
		BackdateGraceDays: 7,
		RequireFullCount:  true,
		SyrupServingML:    decimal.NewFromInt(50),
		JuiceServingML:    decimal.NewFromInt(250),
		LowStockPhysical:  decimal.NewFromInt(2),
		AlertRules: []AlertRule{
			{
				Name:       "low-stock",
				Expression: "physical < low_stock_physical",
				Severity:   "warning",
				Message:    "physical stock below reorder threshold",
			},
			{
				Name:       "large-shortage",
				Expression: "variance_value < -50.0",
				Severity:   "critical",
				Message:    "shortage above EUR 50 for the period",
			},
		},
	}
}

// Scan implements sql.Scanner for reading Config from JSONB.
// Uses a json.Number decoder so decimal fields keep full precision.
func (c *Config) Scan(src any) error {
	if src == nil {
		*c = DefaultConfig()
		return nil
	}

	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for hotel Config: %T", src)
	}

	if len(source) == 0 {
		*c = DefaultConfig()
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(source))
	decoder.UseNumber()

	parsed := DefaultConfig()
	if err := decoder.Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode hotel Config: %w", err)
	}
	*c = parsed
	return nil
}

// Value implements driver.Valuer for writing Config to JSONB.
func (c Config) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Validate checks the configuration is internally consistent.
// Alert rule expressions are compiled by the alerts engine at load time;
// structural checks only here.
func (c *Config) Validate() error {
	if c.ClosePolicy != ClosePolicyStrict && c.ClosePolicy != ClosePolicyFlexible {
		return apperror.NewConfiguration("unknown close policy").
			WithDetail("value", string(c.ClosePolicy))
	}
	if c.BackdateGraceDays < 0 {
		return apperror.NewConfiguration("backdate grace days cannot be negative")
	}
	if !c.SyrupServingML.IsPositive() || !c.JuiceServingML.IsPositive() {
		return apperror.NewConfiguration("serving sizes must be positive")
	}
	if c.LowStockPhysical.IsNegative() {
		return apperror.NewConfiguration("low stock threshold cannot be negative")
	}
	for _, rule := range c.AlertRules {
		if rule.Name == "" || rule.Expression == "" {
			return apperror.NewConfiguration("alert rule requires name and expression").
				WithDetail("rule", rule.Name)
		}
	}
	return nil
}

// ServingML returns the serving size used for a container subcategory's
// consumption reporting.
func (c *Config) ServingML(subcategory string) types.Quantity {
	if subcategory == "syrups" {
		return c.SyrupServingML
	}
	return c.JuiceServingML
}

// Hotel represents one property in the estate.
type Hotel struct {
	entity.Catalog

	// Timezone is the IANA zone the hotel operates in (period day boundaries)
	Timezone string `db:"timezone" json:"timezone"`

	// Currency is the ISO 4217 code all figures for this hotel are held in
	Currency string `db:"currency" json:"currency"`

	// Config is the per-hotel business configuration (JSONB)
	Config Config `db:"config" json:"config"`
}

// NewHotel creates a new Hotel with the default configuration.
func NewHotel(code, name string) *Hotel {
	return &Hotel{
		Catalog:  entity.NewCatalog(code, name),
		Timezone: "Europe/Dublin",
		Currency: "EUR",
		Config:   DefaultConfig(),
	}
}

// Validate implements entity.Validatable interface.
func (h *Hotel) Validate(ctx context.Context) error {
	if err := h.Catalog.Validate(ctx); err != nil {
		return err
	}

	if h.Timezone == "" {
		return apperror.NewValidation("timezone is required").
			WithDetail("field", "timezone")
	}

	if len(h.Currency) != 3 {
		return apperror.NewValidation("currency must be an ISO 4217 code").
			WithDetail("field", "currency").
			WithDetail("value", h.Currency)
	}

	return h.Config.Validate()
}
