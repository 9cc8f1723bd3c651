package hotel

import (
	"stockbook/internal/domain"
)

// Repository defines the interface for hotel storage.
type Repository interface {
	domain.CatalogRepository[*Hotel]
}
