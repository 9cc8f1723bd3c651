// Package entity provides core domain entities.
package entity

import (
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// RegisterKind defines the type of register.
type RegisterKind string

const (
	// RegisterKindAccumulation - tracks quantities and amounts
	RegisterKindAccumulation RegisterKind = "accumulation"
	// RegisterKindInformation - stores dimensional data
	RegisterKindInformation RegisterKind = "information"
)

// MovementKind classifies a stock ledger entry.
type MovementKind string

const (
	MovementPurchase    MovementKind = "PURCHASE"
	MovementSale        MovementKind = "SALE"
	MovementWaste       MovementKind = "WASTE"
	MovementTransferIn  MovementKind = "TRANSFER_IN"
	MovementTransferOut MovementKind = "TRANSFER_OUT"
	MovementAdjustment  MovementKind = "ADJUSTMENT"
)

// IsValid checks the kind is a known movement classification.
func (k MovementKind) IsValid() bool {
	switch k {
	case MovementPurchase, MovementSale, MovementWaste,
		MovementTransferIn, MovementTransferOut, MovementAdjustment:
		return true
	}
	return false
}

// Sign returns the contribution direction of the kind in the expected-stock
// formula: purchases, transfers in and adjustments add; sales, waste and
// transfers out subtract. Adjustment quantities are themselves signed.
func (k MovementKind) Sign() int {
	switch k {
	case MovementSale, MovementWaste, MovementTransferOut:
		return -1
	default:
		return 1
	}
}

// AllowsNegativeQuantity reports whether entries of this kind may carry a
// signed quantity. Only adjustments do; every other kind is recorded as a
// positive amount with direction implied by the kind.
func (k MovementKind) AllowsNegativeQuantity() bool {
	return k == MovementAdjustment
}

// EntrySource identifies where a ledger entry originated.
type EntrySource string

const (
	SourcePOS      EntrySource = "pos"
	SourceManual   EntrySource = "manual"
	SourceWasteLog EntrySource = "waste_log"
	SourceImport   EntrySource = "import"
)

// IsValid checks the source is known.
func (s EntrySource) IsValid() bool {
	switch s {
	case SourcePOS, SourceManual, SourceWasteLog, SourceImport:
		return true
	}
	return false
}

// Movement is one immutable entry in the stock ledger. Entries are
// append-only: they are never updated, and totals for a closed period are
// frozen in the approved stocktake lines rather than recomputed from here.
type Movement struct {
	// LineID is unique identifier for this ledger line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// Dimensions
	HotelID id.ID        `db:"hotel_id" json:"hotelId"`
	ItemID  id.ID        `db:"item_id" json:"itemId"`
	Kind    MovementKind `db:"kind" json:"kind"`

	// Quantity in the item's normalized servings unit. Positive except for
	// adjustments, which may be signed.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// OccurredAt is the business timestamp used for period aggregation
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`

	// Source of the entry (POS feed, manual staff entry, waste log, import)
	Source EntrySource `db:"source" json:"source"`

	// SupplierID is set for purchases when known
	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`

	// Reference is an external document reference (invoice no, till receipt)
	Reference string `db:"reference" json:"reference,omitempty"`

	Comment    string    `db:"comment" json:"comment,omitempty"`
	RecordedBy string    `db:"recorded_by" json:"recordedBy,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// NewMovement creates a ledger entry with generated LineID.
func NewMovement(hotelID, itemID id.ID, kind MovementKind, qty types.Quantity, occurredAt time.Time, source EntrySource) Movement {
	return Movement{
		LineID:     id.New(),
		HotelID:    hotelID,
		ItemID:     itemID,
		Kind:       kind,
		Quantity:   qty,
		OccurredAt: occurredAt,
		Source:     source,
		CreatedAt:  time.Now().UTC(),
	}
}

// SignedQuantity returns the entry's contribution to expected stock.
func (m *Movement) SignedQuantity() types.Quantity {
	if m.Kind.Sign() < 0 {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// Snapshot is the closing-balance record for one item at the end of one
// period, materialized by stocktake approval. It is the sole source of the
// next period's opening balance. Rows are immutable while the period is
// closed; the audited reopen path deletes them wholesale.
type Snapshot struct {
	// Recorder is the stocktake document whose approval wrote this row.
	// RecorderVersion is the document's approval iteration, allowing
	// deterministic cleanup of rows from a reverted approval.
	RecorderID      id.ID `db:"recorder_id" json:"recorderId"`
	RecorderVersion int   `db:"recorder_version" json:"recorderVersion"`

	// Dimensions
	HotelID  id.ID `db:"hotel_id" json:"hotelId"`
	ItemID   id.ID `db:"item_id" json:"itemId"`
	PeriodID id.ID `db:"period_id" json:"periodId"`

	// Closing balances as counted (raw physical units)
	ClosingFullUnits    types.Quantity `db:"closing_full_units" json:"closingFullUnits"`
	ClosingPartialUnits types.Quantity `db:"closing_partial_units" json:"closingPartialUnits"`

	// Derived figures stored for reporting and historical comparison.
	// Rollover re-normalizes from full/partial with the item's current
	// conversion rule; these columns never feed the opening formula.
	ClosingServings types.Quantity `db:"closing_servings" json:"closingServings"`
	ClosingPhysical types.Quantity `db:"closing_physical" json:"closingPhysical"`

	// ClosingValue is the counted monetary value per the item's valuation mode
	ClosingValue types.Money `db:"closing_value" json:"closingValue"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewSnapshot creates a closing-balance row for a stocktake approval.
func NewSnapshot(recorderID id.ID, recorderVersion int, hotelID, itemID, periodID id.ID) Snapshot {
	return Snapshot{
		RecorderID:      recorderID,
		RecorderVersion: recorderVersion,
		HotelID:         hotelID,
		ItemID:          itemID,
		PeriodID:        periodID,
		CreatedAt:       time.Now().UTC(),
	}
}
