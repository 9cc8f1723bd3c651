package periods

import (
	"context"
	"time"

	"stockbook/internal/core/id"
)

// Repository defines the interface for period persistence.
type Repository interface {
	Create(ctx context.Context, p *Period) error

	GetByID(ctx context.Context, periodID id.ID) (*Period, error)

	// GetForUpdate retrieves a period with a row lock. Close and reopen
	// serialize on this lock.
	GetForUpdate(ctx context.Context, periodID id.ID) (*Period, error)

	Update(ctx context.Context, p *Period) error

	// FindOverlapping returns same-type periods of the hotel intersecting
	// the day-inclusive range.
	FindOverlapping(ctx context.Context, hotelID id.ID, periodType PeriodType, start, end time.Time) ([]*Period, error)

	// FindByDateRange resolves the period matching an exact (hotel, start,
	// end) tuple. This is how a stocktake finds its period - never by a
	// shared identifier.
	FindByDateRange(ctx context.Context, hotelID id.ID, start, end time.Time) (*Period, error)

	// FindPrior returns the latest same-type period of the hotel ending
	// before this one, or nil when none exists.
	FindPrior(ctx context.Context, p *Period) (*Period, error)

	// FindLaterClosed returns the earliest closed same-type period of the
	// hotel starting after this one, or nil.
	FindLaterClosed(ctx context.Context, p *Period) (*Period, error)

	// FindClosedContaining returns the closed period of the hotel whose
	// window contains the timestamp, or nil. Close-policy checks use this.
	FindClosedContaining(ctx context.Context, hotelID id.ID, t time.Time) (*Period, error)

	// ListByHotel returns the hotel's periods ordered by start date descending.
	ListByHotel(ctx context.Context, hotelID id.ID, limit, offset int) ([]*Period, error)
}
