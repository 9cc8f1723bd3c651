package entity

import (
	"context"
	"time"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
)

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	// StatusDraft - lines editable, derived figures recomputed on demand
	StatusDraft DocumentStatus = "draft"
	// StatusApproved - terminal unless explicitly reopened; lines read-only
	StatusApproved DocumentStatus = "approved"
)

// IsValid checks the status is a known lifecycle state.
func (s DocumentStatus) IsValid() bool {
	return s == StatusDraft || s == StatusApproved
}

// Document is the base type for business documents.
// Example: Stocktake.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type+period)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Status governs whether the document's figures are authoritative
	Status DocumentStatus `db:"status" json:"status"`

	// ApprovalVersion tracks approval iterations for register reconciliation.
	// Incremented on each approval; register rows carry the version that
	// wrote them so stale rows can be cleaned up deterministically.
	ApprovalVersion int `db:"approval_version" json:"approvalVersion"`

	// ApprovedAt is set when the document reaches approved state
	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`

	// ApprovedBy is the actor who approved
	ApprovedBy string `db:"approved_by" json:"approvedBy,omitempty"`

	// HotelID is the owning hotel (all documents are hotel-scoped)
	HotelID id.ID `db:"hotel_id" json:"hotelId"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document in draft state.
func NewDocument(hotelID id.ID) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
		Status:       StatusDraft,
		HotelID:      hotelID,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if id.IsNil(d.HotelID) {
		return apperror.NewValidation("hotel is required").
			WithDetail("field", "hotelId")
	}

	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	if !d.Status.IsValid() {
		return apperror.NewValidation("unknown document status").
			WithDetail("field", "status").
			WithDetail("value", string(d.Status))
	}

	return nil
}

// CanModify checks if document lines and counts can be edited.
// Approved documents require an explicit reopen first.
func (d *Document) CanModify() error {
	if d.Status == StatusApproved {
		return apperror.NewInvalidStateTransition("document", string(StatusApproved), "modified").
			WithDetail("document_id", d.ID.String())
	}
	return nil
}

// MarkApproved transitions the document to approved state.
func (d *Document) MarkApproved(actor string, at time.Time) {
	d.Status = StatusApproved
	d.ApprovalVersion++
	d.ApprovedAt = &at
	d.ApprovedBy = actor
}

// MarkDraft returns the document to draft state (reopen path).
// Approval metadata is cleared; ApprovalVersion is kept so register rows
// written by the reverted approval remain identifiable.
func (d *Document) MarkDraft() {
	d.Status = StatusDraft
	d.ApprovedAt = nil
	d.ApprovedBy = ""
}

// IsBackdated checks if document date is in the past.
func (d *Document) IsBackdated() bool {
	return d.Date.Before(time.Now().UTC().Truncate(24 * time.Hour))
}

// --- Approvable interface default implementations ---
// Document-specific types only need to implement what their approval
// actually materializes.

// GetID returns the document ID.
func (d *Document) GetID() id.ID {
	return d.ID
}

// GetApprovalVersion returns the current approval iteration.
func (d *Document) GetApprovalVersion() int {
	return d.ApprovalVersion
}

// IsApproved returns true if document is currently approved.
func (d *Document) IsApproved() bool {
	return d.Status == StatusApproved
}

// CanApprove validates if document can be approved.
// Override in specific document types if additional validation is needed.
func (d *Document) CanApprove(ctx context.Context) error {
	if d.Status != StatusDraft {
		return apperror.NewInvalidStateTransition("document", string(d.Status), string(StatusApproved))
	}
	return d.Validate(ctx)
}
