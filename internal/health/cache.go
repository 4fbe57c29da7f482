package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "steppr:health:"

// NewRedisClient parses url, connects, and verifies the server responds.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type cachedWeek struct {
	Day   string          `json:"day"`
	Steps [WeekDays]int64 `json:"steps"`
}

// CachedProvider is a read-through Redis cache in front of another Provider.
// Cache failures fall through to the wrapped provider.
type CachedProvider struct {
	next   Provider
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps next with a cache entry per user that lives for ttl.
func NewCachedProvider(next Provider, client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{next: next, client: client, ttl: ttl, logger: logger}
}

// TodaySteps implements Provider.
func (p *CachedProvider) TodaySteps(ctx context.Context, userID string, now time.Time) (int64, error) {
	week, err := p.WeeklySteps(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	return week[WeekDays-1], nil
}

// WeeklySteps implements Provider.
func (p *CachedProvider) WeeklySteps(ctx context.Context, userID string, now time.Time) ([WeekDays]int64, error) {
	day := StartOfDay(now).Format(time.DateOnly)

	if week, ok := p.lookup(ctx, userID, day); ok {
		return week, nil
	}

	week, err := p.next.WeeklySteps(ctx, userID, now)
	if err != nil {
		return week, err
	}

	payload, err := json.Marshal(cachedWeek{Day: day, Steps: week})
	if err == nil {
		err = p.client.Set(ctx, key(userID), payload, p.ttl).Err()
	}
	if err != nil {
		p.logger.Warn("health cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return week, nil
}

// Invalidate drops the cached counts of userID.
func (p *CachedProvider) Invalidate(ctx context.Context, userID string) error {
	return p.client.Del(ctx, key(userID)).Err()
}

func (p *CachedProvider) lookup(ctx context.Context, userID, day string) ([WeekDays]int64, bool) {
	raw, err := p.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("health cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		return [WeekDays]int64{}, false
	}

	var entry cachedWeek
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Day != day {
		return [WeekDays]int64{}, false
	}
	return entry.Steps, true
}

func key(userID string) string {
	return keyPrefix + userID
}
