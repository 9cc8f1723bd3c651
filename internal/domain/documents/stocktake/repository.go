package stocktake

import (
	"context"
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/domain"
)

// ListFilter defines filtering options for stocktake queries.
type ListFilter struct {
	domain.ListFilter

	HotelID  *id.ID     `json:"hotelId,omitempty"`
	Status   *string    `json:"status,omitempty"`
	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`
}

// Repository defines the interface for stocktake persistence.
type Repository interface {
	// Create persists a new stocktake document (header only).
	Create(ctx context.Context, doc *Stocktake) error

	// GetByID retrieves a stocktake header by ID.
	GetByID(ctx context.Context, docID id.ID) (*Stocktake, error)

	// GetForUpdate retrieves a stocktake header with a row lock
	// (SELECT ... FOR UPDATE). Must be called inside a transaction.
	GetForUpdate(ctx context.Context, docID id.ID) (*Stocktake, error)

	// FindByDateRange resolves the hotel's stocktake for a period's date
	// range. This is the canonical period-to-stocktake lookup; returns nil
	// when no stocktake exists for the range.
	FindByDateRange(ctx context.Context, hotelID id.ID, periodStart, periodEnd time.Time) (*Stocktake, error)

	// ExistsDraftAfter reports whether the hotel has a draft stocktake
	// whose period starts after the given date.
	ExistsDraftAfter(ctx context.Context, hotelID id.ID, after time.Time) (bool, error)

	// Update updates a stocktake header.
	Update(ctx context.Context, doc *Stocktake) error

	// Delete soft-deletes a stocktake.
	Delete(ctx context.Context, docID id.ID) error

	// GetLines retrieves document lines ordered by line number.
	GetLines(ctx context.Context, docID id.ID) ([]Line, error)

	// SaveLines replaces document lines (delete + bulk insert).
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	// List retrieves stocktakes with filtering and pagination.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Stocktake], error)
}
