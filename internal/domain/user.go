package domain

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// DefaultDailyStepGoal applies until the user picks their own.
	DefaultDailyStepGoal  int64 = 10000
	MaxDisplayNameLength        = 50
)

// Identity is the caller as asserted by the identity provider.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// User is the stored profile of a Steppr user.
type User struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"displayName"`
	Email         string    `json:"email"`
	PhotoURL      string    `json:"photoURL,omitempty"`
	DailyStepGoal int64     `json:"dailyStepGoal"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProfileStats are derived from the ledger and challenge membership.
type ProfileStats struct {
	TotalSteps          int64 `json:"totalSteps"`
	ActiveChallenges    int   `json:"activeChallenges"`
	CompletedChallenges int   `json:"completedChallenges"`
}

// Profile is a user together with their stats.
type Profile struct {
	User
	Stats ProfileStats `json:"stats"`
}

// UserStore captures user persistence. GetUser returns nil, nil for unknown ids.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	SaveUser(ctx context.Context, user User) error
}

// MembershipLister lists the challenges a user participates in.
type MembershipLister interface {
	ListChallengesForUser(ctx context.Context, userID string) ([]Challenge, error)
}

// ProfileService serves user profiles.
type ProfileService struct {
	users       UserStore
	steps       StepAggregator
	memberships MembershipLister
	now         Clock
	logger      *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(users UserStore, steps StepAggregator, memberships MembershipLister, opts ...Option) *ProfileService {
	o := buildOptions(opts)
	return &ProfileService{
		users:       users,
		steps:       steps,
		memberships: memberships,
		now:         o.Clock,
		logger:      o.Logger.Named("profiles"),
	}
}

// EnsureUser returns the stored user for identity, creating it on first sight.
func (s *ProfileService) EnsureUser(ctx context.Context, identity Identity) (*User, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return nil, Validationf("userId is required")
	}
	user, err := s.users.GetUser(ctx, identity.UserID)
	if err != nil {
		return nil, unavailable("get user", err)
	}
	if user != nil {
		return user, nil
	}

	now := s.now().UTC()
	name := strings.TrimSpace(identity.DisplayName)
	if name == "" {
		name = identity.UserID
	}
	created := User{
		ID:            identity.UserID,
		DisplayName:   truncateRunes(name, MaxDisplayNameLength),
		Email:         identity.Email,
		DailyStepGoal: DefaultDailyStepGoal,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.SaveUser(ctx, created); err != nil {
		return nil, unavailable("save user", err)
	}
	s.logger.Info("user provisioned", zap.String("user_id", created.ID))
	return &created, nil
}

// GetProfile returns the caller's profile with derived stats.
func (s *ProfileService) GetProfile(ctx context.Context, identity Identity) (*Profile, error) {
	user, err := s.EnsureUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: *user, Stats: stats}, nil
}

func (s *ProfileService) stats(ctx context.Context, userID string) (ProfileStats, error) {
	total, err := s.steps.SumSteps(ctx, userID, beginningOfTime, endOfTime)
	if err != nil {
		return ProfileStats{}, unavailable("sum steps", err)
	}
	challenges, err := s.memberships.ListChallengesForUser(ctx, userID)
	if err != nil {
		return ProfileStats{}, unavailable("list challenges", err)
	}

	stats := ProfileStats{TotalSteps: total}
	now := s.now()
	for _, c := range challenges {
		if c.Status(now) == StatusActive {
			stats.ActiveChallenges++
		} else {
			stats.CompletedChallenges++
		}
	}
	return stats, nil
}

// UpdateProfileInput carries optional profile changes; nil fields are left untouched.
type UpdateProfileInput struct {
	DisplayName   *string
	DailyStepGoal *int64
	PhotoURL      *string
}

func (in UpdateProfileInput) validate() error {
	if in.DisplayName != nil {
		n := utf8.RuneCountInString(strings.TrimSpace(*in.DisplayName))
		if n < 1 || n > MaxDisplayNameLength {
			return Validationf("displayName must be between 1 and %d characters", MaxDisplayNameLength)
		}
	}
	if in.DailyStepGoal != nil && *in.DailyStepGoal <= 0 {
		return Validationf("dailyStepGoal must be positive")
	}
	if in.PhotoURL != nil && *in.PhotoURL != "" {
		u, err := url.Parse(*in.PhotoURL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Validationf("photoURL must be an absolute http(s) URL")
		}
	}
	return nil
}

// UpdateProfile applies the supplied changes and returns the refreshed profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, identity Identity, input UpdateProfileInput) (*Profile, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	user, err := s.EnsureUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	updated := *user
	if input.DisplayName != nil {
		updated.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.DailyStepGoal != nil {
		updated.DailyStepGoal = *input.DailyStepGoal
	}
	if input.PhotoURL != nil {
		updated.PhotoURL = *input.PhotoURL
	}
	updated.UpdatedAt = s.now().UTC()

	if err := s.users.SaveUser(ctx, updated); err != nil {
		return nil, unavailable("save user", err)
	}

	stats, err := s.stats(ctx, updated.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: updated, Stats: stats}, nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
