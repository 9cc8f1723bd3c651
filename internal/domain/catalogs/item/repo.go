package item

import (
	"context"

	"stockbook/internal/domain"
	"stockbook/internal/domain/uom"
)

// Repository defines the interface for Item persistence.
type Repository interface {
	domain.CatalogRepository[*Item]

	// FindActive retrieves active items for stocktake line generation,
	// ordered by SKU.
	FindActive(ctx context.Context) ([]*Item, error)

	// FindByCategory retrieves items of one category.
	FindByCategory(ctx context.Context, category uom.Category, filter domain.ListFilter) (domain.ListResult[*Item], error)
}
