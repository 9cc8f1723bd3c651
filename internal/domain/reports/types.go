// Package reports provides read-only rollups over approved stocktakes,
// the movement ledger and the snapshot register.
package reports

import (
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// --- Period Summary ---

// PeriodSummaryFilter addresses a period by its canonical
// (hotel, start, end) tuple.
type PeriodSummaryFilter struct {
	HotelID     id.ID
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// CategorySummary is one category's rollup within a period.
type CategorySummary struct {
	Category      string      `json:"category"`
	LineCount     int         `json:"lineCount"`
	ExpectedValue types.Money `json:"expectedValue"`
	CountedValue  types.Money `json:"countedValue"`
	VarianceValue types.Money `json:"varianceValue"`
}

// PeriodSummary is the period-end financial rollup.
type PeriodSummary struct {
	HotelID     id.ID     `json:"hotelId"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`

	StocktakeNumber string `json:"stocktakeNumber"`
	Status          string `json:"status"`
	IsClosed        bool   `json:"isClosed"`

	TotalExpectedValue types.Money `json:"totalExpectedValue"`
	TotalCountedValue  types.Money `json:"totalCountedValue"`
	TotalVarianceValue types.Money `json:"totalVarianceValue"`

	Categories []CategorySummary `json:"categories"`
}

// --- Variance Report ---

// VarianceReportFilter defines the variance drill-down query.
type VarianceReportFilter struct {
	HotelID     id.ID
	PeriodStart time.Time
	PeriodEnd   time.Time

	// Category restricts to one category when set
	Category *string

	// MinAbsVarianceValue drops lines with a smaller absolute variance
	MinAbsVarianceValue *types.Money

	// SortBy: "variance_value" (default, worst first) or "variance_qty"
	SortBy string

	Limit  int
	Offset int
}

// VarianceReportItem is one item's expected-vs-counted row.
type VarianceReportItem struct {
	ItemID      id.ID  `json:"itemId"`
	ItemSKU     string `json:"itemSku"`
	ItemName    string `json:"itemName"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`

	OpeningQty  types.Quantity `json:"openingQty"`
	ExpectedQty types.Quantity `json:"expectedQty"`
	CountedQty  types.Quantity `json:"countedQty"`
	VarianceQty types.Quantity `json:"varianceQty"`

	VarianceValue types.Money `json:"varianceValue"`

	OpeningMissingSnapshot bool `json:"openingMissingSnapshot,omitempty"`
}

// VarianceReport is the full variance drill-down for a period.
type VarianceReport struct {
	HotelID     id.ID     `json:"hotelId"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`

	Items      []VarianceReportItem `json:"items"`
	TotalItems int                  `json:"totalItems"`

	TotalVarianceValue types.Money `json:"totalVarianceValue"`
}

// --- Item History ---

// ItemHistoryFilter defines the per-item trend query.
type ItemHistoryFilter struct {
	HotelID id.ID
	ItemID  id.ID

	FromDate time.Time
	ToDate   time.Time

	Limit int
}

// ItemHistoryPoint is one closed period's figures for the item.
type ItemHistoryPoint struct {
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`

	ClosingFullUnits    types.Quantity `json:"closingFullUnits"`
	ClosingPartialUnits types.Quantity `json:"closingPartialUnits"`
	ClosingServings     types.Quantity `json:"closingServings"`
	ClosingPhysical     types.Quantity `json:"closingPhysical"`
	ClosingValue        types.Money    `json:"closingValue"`

	VarianceQty   types.Quantity `json:"varianceQty"`
	VarianceValue types.Money    `json:"varianceValue"`
}

// ItemHistory is an item's closing-balance and variance series.
type ItemHistory struct {
	ItemID   id.ID  `json:"itemId"`
	ItemSKU  string `json:"itemSku"`
	ItemName string `json:"itemName"`

	Points []ItemHistoryPoint `json:"points"`
}
