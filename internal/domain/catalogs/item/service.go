package item

import (
	"context"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/tx"
	"stockbook/internal/domain"
	"stockbook/internal/domain/uom"
)

// Service provides business logic for the Item catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Item]
	repo Repository
}

// NewService creates a new Item service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Item]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "item",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().OnBeforeCreate(svc.checkSKUUnique)

	return svc
}

// checkSKUUnique rejects a second item with the same SKU.
func (s *Service) checkSKUUnique(ctx context.Context, it *Item) error {
	if it.Code == "" {
		return apperror.NewValidation("sku is required").
			WithDetail("field", "code")
	}
	if exists, err := s.repo.ExistsByCode(ctx, it.Code); err == nil && exists {
		return apperror.NewDuplicate("item", "sku", it.Code)
	}
	return nil
}

// FindActive retrieves active items for stocktake line generation.
func (s *Service) FindActive(ctx context.Context) ([]*Item, error) {
	return s.repo.FindActive(ctx)
}

// FindByCategory retrieves items of one category.
func (s *Service) FindByCategory(ctx context.Context, category uom.Category, filter domain.ListFilter) (domain.ListResult[*Item], error) {
	return s.repo.FindByCategory(ctx, category, filter)
}
