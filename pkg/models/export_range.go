package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	// MaxExportDays is the widest span, in days between start and end date, of a single export.
	MaxExportDays = 7
)

var (
	ErrStartAfterEnd = errors.New("start date must not be after end date")
	ErrRangeTooLong  = fmt.Errorf("date range cannot exceed %d days", MaxExportDays)
	ErrMissingDate   = errors.New("start and end date are required")
)

// ExportRange is an inclusive range of calendar days. Start and End are
// midnight in the location the days were read in.
type ExportRange struct {
	Start time.Time
	End   time.Time
}

func NewExportRange(start, end time.Time) ExportRange {
	return ExportRange{Start: truncateDay(start), End: truncateDay(end)}
}

func ParseExportRange(start, end string) (ExportRange, error) {
	return ParseExportRangeIn(start, end, time.UTC)
}

// ParseExportRangeIn reads both days as calendar days of loc.
func ParseExportRangeIn(start, end string, loc *time.Location) (ExportRange, error) {
	if start == "" || end == "" {
		return ExportRange{}, ErrMissingDate
	}
	if loc == nil {
		loc = time.UTC
	}
	s, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return ExportRange{}, fmt.Errorf("invalid start date: %w", err)
	}
	e, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return ExportRange{}, fmt.Errorf("invalid end date: %w", err)
	}
	r := ExportRange{Start: s, End: e}
	return r, r.Validate()
}

func (r ExportRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrMissingDate
	}
	if r.Start.After(r.End) {
		return ErrStartAfterEnd
	}
	if r.End.After(r.Start.AddDate(0, 0, MaxExportDays)) {
		return ErrRangeTooLong
	}
	return nil
}

// Filter selects every entry from the first instant of Start up to the last instant of End.
func (r ExportRange) Filter(branch string) LedgerFilter {
	return LedgerFilter{
		From:   r.Start,
		To:     r.End.AddDate(0, 0, 1),
		Branch: branch,
	}
}

func (r ExportRange) Filename() string {
	return fmt.Sprintf("scans_%s_%s.xlsx", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
