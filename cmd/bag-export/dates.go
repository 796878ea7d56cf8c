package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/denysvitali/go-datesfinder"

	"github.com/redromiee/bag-tracker/pkg/models"
)

// parseDay accepts YYYY-MM-DD, "today", "yesterday" or any date the finder
// recognises (for example 04.03.2024). The result is midnight UTC.
func parseDay(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "today":
		return day(now), nil
	case "yesterday":
		return day(now.AddDate(0, 0, -1)), nil
	}
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t, nil
	}
	dates, _ := datesfinder.FindDates(s)
	if len(dates) == 0 {
		return time.Time{}, fmt.Errorf("unable to parse date %q", s)
	}
	return day(dates[0]), nil
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
