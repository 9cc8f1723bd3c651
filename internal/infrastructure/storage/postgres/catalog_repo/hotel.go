package catalog_repo

import (
	"stockbook/internal/domain/catalogs/hotel"
	"stockbook/internal/infrastructure/storage/postgres"
)

const hotelTable = "cat_hotels"

// HotelRepo implements hotel.Repository.
type HotelRepo struct {
	*BaseCatalogRepo[*hotel.Hotel]
}

var _ hotel.Repository = (*HotelRepo)(nil)

// NewHotelRepo creates a new hotel repository.
func NewHotelRepo(txm *postgres.TxManager) *HotelRepo {
	return &HotelRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*hotel.Hotel](
			txm,
			hotelTable,
			postgres.ExtractDBColumns[hotel.Hotel](),
			func() *hotel.Hotel { return &hotel.Hotel{} },
		),
	}
}
