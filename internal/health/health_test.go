package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/persistence/memory"
)

var now = time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.Store, userID string, date time.Time, steps int64) {
	t.Helper()
	require.NoError(t, store.AppendActivity(context.Background(), domain.Activity{
		ID:               date.Format(time.RFC3339Nano) + userID,
		UserID:           userID,
		Type:             domain.ActivityWalking,
		OriginalQuantity: float64(steps),
		OriginalUnit:     domain.UnitSteps,
		Steps:            steps,
		Date:             date,
		CreatedAt:        date,
	}, ""))
}

func TestLedgerProviderBucketsByUTCDay(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "u1", now.Add(-time.Hour), 3000)
	seed(t, store, "u1", StartOfDay(now), 500)
	seed(t, store, "u1", StartOfDay(now).Add(-time.Nanosecond), 700)
	seed(t, store, "u1", now.AddDate(0, 0, -6), 1000)
	seed(t, store, "u1", now.AddDate(0, 0, -7), 9999)
	seed(t, store, "u2", now, 42)

	p := NewLedgerProvider(store)

	today, err := p.TodaySteps(context.Background(), "u1", now)
	require.NoError(t, err)
	require.Equal(t, int64(3500), today)

	week, err := p.WeeklySteps(context.Background(), "u1", now)
	require.NoError(t, err)
	require.Equal(t, [WeekDays]int64{1000, 0, 0, 0, 0, 700, 3500}, week)
}

func newCache(t *testing.T, next Provider) (*CachedProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedProvider(next, client, time.Minute, zaptest.NewLogger(t)), mr
}

type countingProvider struct {
	calls int
	week  [WeekDays]int64
	err   error
}

func (c *countingProvider) TodaySteps(ctx context.Context, userID string, now time.Time) (int64, error) {
	w, err := c.WeeklySteps(ctx, userID, now)
	return w[WeekDays-1], err
}

func (c *countingProvider) WeeklySteps(context.Context, string, time.Time) ([WeekDays]int64, error) {
	c.calls++
	return c.week, c.err
}

func TestCachedProviderReadsThrough(t *testing.T) {
	next := &countingProvider{week: [WeekDays]int64{1, 2, 3, 4, 5, 6, 7}}
	cache, mr := newCache(t, next)
	ctx := context.Background()

	week, err := cache.WeeklySteps(ctx, "u1", now)
	require.NoError(t, err)
	require.Equal(t, next.week, week)

	today, err := cache.TodaySteps(ctx, "u1", now)
	require.NoError(t, err)
	require.Equal(t, int64(7), today)
	require.Equal(t, 1, next.calls)
	require.True(t, mr.Exists(keyPrefix+"u1"))

	require.NoError(t, cache.Invalidate(ctx, "u1"))
	_, err = cache.WeeklySteps(ctx, "u1", now)
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
}

func TestCachedProviderExpiresAndRollsOverDays(t *testing.T) {
	next := &countingProvider{}
	cache, mr := newCache(t, next)
	ctx := context.Background()

	_, err := cache.WeeklySteps(ctx, "u1", now)
	require.NoError(t, err)

	_, err = cache.WeeklySteps(ctx, "u1", now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 2, next.calls, "a new day must not reuse yesterday's entry")

	mr.FastForward(2 * time.Minute)
	_, err = cache.WeeklySteps(ctx, "u1", now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 3, next.calls)
}

func TestCachedProviderFallsThroughWhenRedisIsDown(t *testing.T) {
	next := &countingProvider{week: [WeekDays]int64{0, 0, 0, 0, 0, 0, 12}}
	cache, mr := newCache(t, next)
	mr.Close()

	today, err := cache.TodaySteps(context.Background(), "u1", now)
	require.NoError(t, err)
	require.Equal(t, int64(12), today)
}

func TestCachedProviderPropagatesProviderErrors(t *testing.T) {
	cache, _ := newCache(t, &countingProvider{err: errors.New("boom")})

	_, err := cache.WeeklySteps(context.Background(), "u1", now)
	require.Error(t, err)
}

type goalStub struct {
	goal int64
}

func (g goalStub) EnsureUser(_ context.Context, identity domain.Identity) (*domain.User, error) {
	return &domain.User{ID: identity.UserID, DailyStepGoal: g.goal}, nil
}

func TestDashboardClampsProgress(t *testing.T) {
	clock := func() time.Time { return now }
	next := &countingProvider{week: [WeekDays]int64{0, 0, 0, 0, 0, 0, 15000}}

	dash, err := NewDashboardService(next, goalStub{goal: 10000}, clock).Get(context.Background(), domain.Identity{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "2026-03-10", dash.Date)
	require.Equal(t, int64(15000), dash.TodaySteps)
	require.Equal(t, 1.0, dash.Progress)
	require.True(t, dash.GoalReached)

	next.week[WeekDays-1] = 2500
	dash, err = NewDashboardService(next, goalStub{goal: 10000}, clock).Get(context.Background(), domain.Identity{UserID: "u1"})
	require.NoError(t, err)
	require.InDelta(t, 0.25, dash.Progress, 1e-9)
	require.False(t, dash.GoalReached)
}

func TestDashboardWrapsProviderFailures(t *testing.T) {
	svc := NewDashboardService(&countingProvider{err: errors.New("down")}, goalStub{goal: 100}, nil)

	_, err := svc.Get(context.Background(), domain.Identity{UserID: "u1"})
	require.True(t, domain.IsCode(err, domain.ErrCodeUnavailable))
}
