package health

import (
	"context"
	"time"

	"github.com/chazstevenson112/Steppr/internal/domain"
)

// Invalidator is implemented by providers that cache counts.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Dashboard is the home screen summary of a user's day.
type Dashboard struct {
	Date        string          `json:"date"`
	TodaySteps  int64           `json:"todaySteps"`
	DailyGoal   int64           `json:"dailyGoal"`
	Progress    float64         `json:"progress"`
	GoalReached bool            `json:"goalReached"`
	WeeklySteps [WeekDays]int64 `json:"weeklySteps"`
}

// GoalSource resolves a user's daily step goal.
type GoalSource interface {
	EnsureUser(ctx context.Context, identity domain.Identity) (*domain.User, error)
}

// DashboardService assembles dashboards from a Provider and the user's goal.
type DashboardService struct {
	provider Provider
	goals    GoalSource
	now      domain.Clock
}

// NewDashboardService constructs a DashboardService. A nil clock uses the wall clock.
func NewDashboardService(provider Provider, goals GoalSource, clock domain.Clock) *DashboardService {
	if clock == nil {
		clock = time.Now
	}
	return &DashboardService{provider: provider, goals: goals, now: clock}
}

// Get returns the dashboard of identity for the current day.
func (s *DashboardService) Get(ctx context.Context, identity domain.Identity) (*Dashboard, error) {
	user, err := s.goals.EnsureUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	now := s.now()
	week, err := s.provider.WeeklySteps(ctx, user.ID, now)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "health data unavailable", err)
	}

	today := week[WeekDays-1]
	goal := user.DailyStepGoal
	if goal <= 0 {
		goal = domain.DefaultDailyStepGoal
	}
	return &Dashboard{
		Date:        StartOfDay(now).Format(time.DateOnly),
		TodaySteps:  today,
		DailyGoal:   goal,
		Progress:    domain.Clamp01(float64(today) / float64(goal)),
		GoalReached: today >= goal,
		WeeklySteps: week,
	}, nil
}

// Invalidate drops cached counts for userID when the provider caches them.
func (s *DashboardService) Invalidate(ctx context.Context, userID string) error {
	if inv, ok := s.provider.(Invalidator); ok {
		return inv.Invalidate(ctx, userID)
	}
	return nil
}
