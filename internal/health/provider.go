// Package health provides daily and weekly step counts for the dashboard.
package health

import (
	"context"
	"time"

	"github.com/chazstevenson112/Steppr/internal/domain"
)

// WeekDays is the number of days reported by WeeklySteps.
const WeekDays = 7

// Provider reports step counts for a user. Days are UTC calendar days.
type Provider interface {
	TodaySteps(ctx context.Context, userID string, now time.Time) (int64, error)
	// WeeklySteps returns the last seven days oldest first; the last element is today.
	WeeklySteps(ctx context.Context, userID string, now time.Time) ([WeekDays]int64, error)
}

// LedgerProvider derives step counts from the activity ledger.
type LedgerProvider struct {
	steps domain.StepAggregator
}

// NewLedgerProvider constructs a LedgerProvider over steps.
func NewLedgerProvider(steps domain.StepAggregator) *LedgerProvider {
	return &LedgerProvider{steps: steps}
}

// TodaySteps implements Provider.
func (p *LedgerProvider) TodaySteps(ctx context.Context, userID string, now time.Time) (int64, error) {
	start := StartOfDay(now)
	return p.steps.SumSteps(ctx, userID, start, start.AddDate(0, 0, 1))
}

// WeeklySteps implements Provider.
func (p *LedgerProvider) WeeklySteps(ctx context.Context, userID string, now time.Time) ([WeekDays]int64, error) {
	var out [WeekDays]int64
	today := StartOfDay(now)
	for i := 0; i < WeekDays; i++ {
		day := today.AddDate(0, 0, i-(WeekDays-1))
		total, err := p.steps.SumSteps(ctx, userID, day, day.AddDate(0, 0, 1))
		if err != nil {
			return out, err
		}
		out[i] = total
	}
	return out, nil
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
