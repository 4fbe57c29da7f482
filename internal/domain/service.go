// Package domain defines the Steppr business rules: step conversion, the
// activity ledger, challenges, leaderboards and user profiles.
package domain

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Clock returns the current time. Services default to UTC wall time.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// StepAggregator sums ledger steps for a user over a half-open window [from, to).
type StepAggregator interface {
	SumSteps(ctx context.Context, userID string, from, to time.Time) (int64, error)
}

// StandingsRefresher recomputes challenge standings for a user after new activity.
type StandingsRefresher interface {
	RefreshUser(ctx context.Context, userID string) (int, error)
}

// Window bounds used when a caller wants every activity regardless of date.
var (
	beginningOfTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	endOfTime       = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// Options collects the collaborators shared by the domain services.
type Options struct {
	Clock     Clock
	Logger    *zap.Logger
	Converter Converter
	Refresher StandingsRefresher
	Codes     InviteCodeGenerator
}

// Option configures a domain service.
type Option func(*Options)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithConverter overrides the step converter.
func WithConverter(converter Converter) Option {
	return func(o *Options) {
		o.Converter = converter
	}
}

// WithStandingsRefresher makes activity writes refresh challenge standings synchronously.
func WithStandingsRefresher(refresher StandingsRefresher) Option {
	return func(o *Options) {
		o.Refresher = refresher
	}
}

// WithInviteCodes overrides the invite code generator.
func WithInviteCodes(codes InviteCodeGenerator) Option {
	return func(o *Options) {
		o.Codes = codes
	}
}

func buildOptions(opts []Option) Options {
	o := Options{
		Clock:  systemClock,
		Logger: zap.NewNop(),
		Codes:  RandomInviteCodes{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Clock == nil {
		o.Clock = systemClock
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Codes == nil {
		o.Codes = RandomInviteCodes{}
	}
	return o
}
