// Package periods manages accounting periods: creation, close and reopen.
// A period is a hotel-scoped date range; at most one period per
// (hotel, year, month, period type), and same-type periods never overlap.
package periods

import (
	"context"
	"time"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
)

// PeriodType is the closed set of period cadences.
type PeriodType string

const (
	TypeMonthly PeriodType = "monthly"
	TypeWeekly  PeriodType = "weekly"
	TypeAdhoc   PeriodType = "adhoc"
)

// IsValid checks the period type is known.
func (t PeriodType) IsValid() bool {
	switch t {
	case TypeMonthly, TypeWeekly, TypeAdhoc:
		return true
	}
	return false
}

// Period is one accounting period for one hotel. StartDate and EndDate are
// dates (midnight UTC), both days inclusive: the aggregation window runs
// [StartDate 00:00, EndDate+1d 00:00).
type Period struct {
	entity.BaseDocument

	HotelID id.ID `db:"hotel_id" json:"hotelId"`

	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`

	// Year and Month are derived from StartDate; the
	// (hotel, year, month, type) tuple is unique
	Year  int `db:"year" json:"year"`
	Month int `db:"month" json:"month"`

	PeriodType PeriodType `db:"period_type" json:"periodType"`

	IsClosed bool       `db:"is_closed" json:"isClosed"`
	ClosedAt *time.Time `db:"closed_at" json:"closedAt,omitempty"`
	ClosedBy string     `db:"closed_by" json:"closedBy,omitempty"`

	ReopenedAt  *time.Time `db:"reopened_at" json:"reopenedAt,omitempty"`
	ReopenedBy  string     `db:"reopened_by" json:"reopenedBy,omitempty"`
	ReopenCount int        `db:"reopen_count" json:"reopenCount"`
}

// truncateToDay normalizes a timestamp to its UTC date.
func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewPeriod creates an open period. Dates are normalized to UTC days and
// year/month derived from the start date.
func NewPeriod(hotelID id.ID, start, end time.Time, periodType PeriodType) *Period {
	start = truncateToDay(start)
	end = truncateToDay(end)
	return &Period{
		BaseDocument: entity.NewBaseDocument(),
		HotelID:      hotelID,
		StartDate:    start,
		EndDate:      end,
		Year:         start.Year(),
		Month:        int(start.Month()),
		PeriodType:   periodType,
	}
}

// Validate implements entity.Validatable.
func (p *Period) Validate(ctx context.Context) error {
	if id.IsNil(p.HotelID) {
		return apperror.NewValidation("hotel is required").
			WithDetail("field", "hotelId")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return apperror.NewValidation("start and end dates are required")
	}
	if p.EndDate.Before(p.StartDate) {
		return apperror.NewValidation("end date cannot precede start date").
			WithDetail("start_date", p.StartDate.Format("2006-01-02")).
			WithDetail("end_date", p.EndDate.Format("2006-01-02"))
	}
	if !p.PeriodType.IsValid() {
		return apperror.NewValidation("unknown period type").
			WithDetail("field", "periodType").
			WithDetail("value", string(p.PeriodType))
	}
	return nil
}

// WindowStart is the inclusive lower bound of the aggregation window.
func (p *Period) WindowStart() time.Time {
	return truncateToDay(p.StartDate)
}

// WindowEnd is the exclusive upper bound: the end date's full day counts.
func (p *Period) WindowEnd() time.Time {
	return truncateToDay(p.EndDate).Add(24 * time.Hour)
}

// ContainsTime reports whether a timestamp falls inside the period window.
func (p *Period) ContainsTime(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.WindowStart()) && t.Before(p.WindowEnd())
}

// Overlaps reports whether another day-inclusive date range intersects
// this period.
func (p *Period) Overlaps(start, end time.Time) bool {
	start = truncateToDay(start)
	end = truncateToDay(end)
	return !end.Before(p.StartDate) && !start.After(p.EndDate)
}

// MarkClosed flags the period closed.
func (p *Period) MarkClosed(actor string, at time.Time) {
	p.IsClosed = true
	p.ClosedAt = &at
	p.ClosedBy = actor
}

// MarkReopened clears the closed flag and records the reopen.
func (p *Period) MarkReopened(actor string, at time.Time) {
	p.IsClosed = false
	p.ClosedAt = nil
	p.ClosedBy = ""
	p.ReopenedAt = &at
	p.ReopenedBy = actor
	p.ReopenCount++
}

// Label is the period's display form, e.g. "2026-08 monthly".
func (p *Period) Label() string {
	return p.StartDate.Format("2006-01") + " " + string(p.PeriodType)
}
