package reports

import (
	"context"
)

// Repository defines report data access. Implementations read approved
// stocktake lines and the snapshot register; reports never recompute from
// the live ledger, so a closed period's figures are stable.
type Repository interface {
	GetPeriodSummary(ctx context.Context, filter PeriodSummaryFilter) (*PeriodSummary, error)
	GetVarianceReport(ctx context.Context, filter VarianceReportFilter) (*VarianceReport, error)
	GetItemHistory(ctx context.Context, filter ItemHistoryFilter) (*ItemHistory, error)
}
