package service

import (
	"time"

	"github.com/plantmetrics/plant/internal/metric/domain"
)

// periodStart resolves the first instant of the current month, quarter, or
// year relative to now. Quarters start at month indexes 0, 3, 6, 9.
func periodStart(now time.Time, period domain.Period) time.Time {
	now = now.UTC()
	switch period {
	case domain.PeriodQuarter:
		quarterMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		return time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC)
	case domain.PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}
