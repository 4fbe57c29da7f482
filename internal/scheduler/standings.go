// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/observability"
)

// ActiveRefresher recomputes the standings of every active challenge.
type ActiveRefresher interface {
	RefreshActive(ctx context.Context) (int, error)
}

// StandingsJob periodically refreshes active challenge standings so they
// converge even when no event reaches the consumer.
type StandingsJob struct {
	refresher ActiveRefresher
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewStandingsJob constructs a job firing every interval.
func NewStandingsJob(refresher ActiveRefresher, interval time.Duration, logger *zap.Logger) *StandingsJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StandingsJob{
		refresher: refresher,
		interval:  interval,
		timeout:   interval,
		logger:    logger,
	}
}

// Start schedules the job. Overlapping runs are skipped.
func (j *StandingsJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", j.interval), j.run); err != nil {
		return fmt.Errorf("schedule standings refresh: %w", err)
	}
	c.Start()
	j.cron = c
	j.logger.Info("standings refresh scheduled", zap.Duration("interval", j.interval))
	return nil
}

// Stop unschedules the job and waits for a running refresh, bounded by ctx.
func (j *StandingsJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce refreshes all active challenges immediately.
func (j *StandingsJob) RunOnce(ctx context.Context) (int, error) {
	started := time.Now()
	n, err := j.refresher.RefreshActive(ctx)
	if err != nil {
		j.logger.Warn("standings refresh incomplete", zap.Int("participants", n), zap.Error(err))
		return n, err
	}
	observability.RecordStandingsRefresh("cron", started)
	j.logger.Debug("standings refreshed", zap.Int("participants", n), zap.Duration("took", time.Since(started)))
	return n, nil
}

func (j *StandingsJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, _ = j.RunOnce(ctx)
}
