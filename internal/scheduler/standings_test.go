package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type refresherFunc func(ctx context.Context) (int, error)

func (f refresherFunc) RefreshActive(ctx context.Context) (int, error) { return f(ctx) }

func TestRunOnceReportsRefreshedChallenges(t *testing.T) {
	job := NewStandingsJob(refresherFunc(func(context.Context) (int, error) { return 3, nil }), time.Minute, zaptest.NewLogger(t))

	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestRunOnceReturnsPartialFailures(t *testing.T) {
	boom := errors.New("boom")
	job := NewStandingsJob(refresherFunc(func(context.Context) (int, error) { return 1, boom }), time.Minute, nil)

	n, err := job.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, n)
}

func TestStartFiresOnInterval(t *testing.T) {
	var calls atomic.Int32
	job := NewStandingsJob(refresherFunc(func(context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	}), time.Second, zaptest.NewLogger(t))

	require.NoError(t, job.Start())
	require.NoError(t, job.Start())
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, job.Stop(ctx))
	require.NoError(t, job.Stop(ctx))
}
