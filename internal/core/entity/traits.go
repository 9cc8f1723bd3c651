package entity

import (
	"context"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
)

// HotelAware is a trait for entities scoped to one hotel.
// Used for composition in models like Period, Movement, Stocktake.
type HotelAware struct {
	// HotelID is the owning hotel for this entity
	HotelID id.ID `db:"hotel_id" json:"hotelId"`
}

// ValidateHotel ensures a hotel is set.
func (h *HotelAware) ValidateHotel(ctx context.Context) error {
	if id.IsNil(h.HotelID) {
		return apperror.NewValidation("hotel is required").
			WithDetail("field", "hotelId")
	}
	return nil
}

// GetHotelID returns the hotel ID (useful for interfaces).
func (h *HotelAware) GetHotelID() id.ID {
	return h.HotelID
}

// IHotelAware is an interface for any entity scoped to a hotel.
type IHotelAware interface {
	GetHotelID() id.ID
	ValidateHotel(ctx context.Context) error
}
