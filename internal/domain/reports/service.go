package reports

import (
	"context"
	"fmt"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
)

// Service provides report generation operations.
type Service struct {
	repo Repository
}

// NewService creates a new reports service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetPeriodSummary returns the financial rollup for one period.
func (s *Service) GetPeriodSummary(ctx context.Context, filter PeriodSummaryFilter) (*PeriodSummary, error) {
	if id.IsNil(filter.HotelID) {
		return nil, apperror.NewValidation("hotel is required")
	}
	if filter.PeriodStart.IsZero() || filter.PeriodEnd.IsZero() {
		return nil, apperror.NewValidation("period start and end are required")
	}

	summary, err := s.repo.GetPeriodSummary(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get period summary: %w", err)
	}
	return summary, nil
}

// GetVarianceReport returns the per-item variance drill-down for a period,
// worst variances first by default.
func (s *Service) GetVarianceReport(ctx context.Context, filter VarianceReportFilter) (*VarianceReport, error) {
	if id.IsNil(filter.HotelID) {
		return nil, apperror.NewValidation("hotel is required")
	}
	if filter.PeriodStart.IsZero() || filter.PeriodEnd.IsZero() {
		return nil, apperror.NewValidation("period start and end are required")
	}

	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	if filter.SortBy == "" {
		filter.SortBy = "variance_value"
	}

	report, err := s.repo.GetVarianceReport(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get variance report: %w", err)
	}
	return report, nil
}

// GetItemHistory returns an item's closing-balance and variance series
// across closed periods.
func (s *Service) GetItemHistory(ctx context.Context, filter ItemHistoryFilter) (*ItemHistory, error) {
	if id.IsNil(filter.HotelID) || id.IsNil(filter.ItemID) {
		return nil, apperror.NewValidation("hotel and item are required")
	}
	if !filter.FromDate.IsZero() && !filter.ToDate.IsZero() && filter.FromDate.After(filter.ToDate) {
		return nil, apperror.NewValidation("from date must not follow to date")
	}

	if filter.Limit <= 0 {
		filter.Limit = 24
	}

	history, err := s.repo.GetItemHistory(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get item history: %w", err)
	}
	return history, nil
}
