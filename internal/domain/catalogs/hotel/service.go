package hotel

import (
	"context"

	"stockbook/internal/core/id"
	"stockbook/internal/core/tx"
	"stockbook/internal/domain"
)

// ConfigProvider resolves per-hotel configuration. The production
// implementation caches rows with a TTL (infrastructure/cache); tests use
// a stub.
type ConfigProvider interface {
	ConfigFor(ctx context.Context, hotelID id.ID) (Config, error)
}

// Service provides business logic for the Hotel catalog.
type Service struct {
	*domain.CatalogService[*Hotel]
	repo Repository
}

// NewService creates a new Hotel service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Hotel]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "hotel",
	})

	return &Service{
		CatalogService: base,
		repo:           repo,
	}
}

// ConfigFor implements ConfigProvider directly against the repository.
// Wrap with the caching provider in production wiring.
func (s *Service) ConfigFor(ctx context.Context, hotelID id.ID) (Config, error) {
	h, err := s.GetByID(ctx, hotelID)
	if err != nil {
		return Config{}, err
	}
	return h.Config, nil
}
