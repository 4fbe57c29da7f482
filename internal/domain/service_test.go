package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/persistence/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedCodes struct {
	codes []string
	next  int
}

func (f *fixedCodes) Generate() (string, error) {
	if f.next >= len(f.codes) {
		return "", errors.New("exhausted")
	}
	code := f.codes[f.next]
	f.next++
	return code, nil
}

type services struct {
	store      *memory.Store
	clock      *fakeClock
	activities *domain.ActivityService
	challenges *domain.ChallengeService
	profiles   *domain.ProfileService
}

func newServices(t *testing.T, extra ...domain.Option) services {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	opts := append([]domain.Option{domain.WithClock(clock.Now)}, extra...)

	challenges := domain.NewChallengeService(store, store, opts...)
	activities := domain.NewActivityService(store, append(opts, domain.WithStandingsRefresher(challenges))...)
	profiles := domain.NewProfileService(store, store, store, opts...)
	return services{store: store, clock: clock, activities: activities, challenges: challenges, profiles: profiles}
}

func logActivity(t *testing.T, svc *domain.ActivityService, userID, activityType string, qty float64, unit string, date time.Time) domain.Activity {
	t.Helper()
	res, err := svc.LogActivity(context.Background(), domain.LogActivityInput{
		RawActivity: domain.RawActivity{UserID: userID, Type: activityType, Quantity: qty, Unit: unit, Date: date},
	})
	require.NoError(t, err)
	return res.Activity
}
