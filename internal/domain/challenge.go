package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChallengeType selects how TargetSteps is interpreted.
type ChallengeType string

const (
	// ChallengeTotalSteps compares the accumulated total against TargetSteps.
	ChallengeTotalSteps ChallengeType = "total_steps_goal"
	// ChallengeDailyAverage compares the per-day average against TargetSteps.
	ChallengeDailyAverage ChallengeType = "daily_average_goal"
)

// ParseChallengeType validates a raw challenge type.
func ParseChallengeType(raw string) (ChallengeType, error) {
	switch ChallengeType(strings.TrimSpace(raw)) {
	case ChallengeTotalSteps:
		return ChallengeTotalSteps, nil
	case ChallengeDailyAverage:
		return ChallengeDailyAverage, nil
	}
	return "", Validationf("unknown challenge type %q", raw)
}

// ChallengeStatus is derived from the challenge window.
type ChallengeStatus string

const (
	StatusActive    ChallengeStatus = "active"
	StatusCompleted ChallengeStatus = "completed"
)

// StatusFilter narrows challenge listings.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterActive    StatusFilter = "active"
	FilterCompleted StatusFilter = "completed"
)

// ParseStatusFilter validates a listing filter; empty means all.
func ParseStatusFilter(raw string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive:
		return FilterActive, nil
	case FilterCompleted:
		return FilterCompleted, nil
	}
	return "", Validationf("unknown status filter %q", raw)
}

// Matches reports whether a challenge with status passes the filter.
func (f StatusFilter) Matches(status ChallengeStatus) bool {
	return f == FilterAll || string(f) == string(status)
}

// Validation bounds for challenge creation.
const (
	MaxChallengeNameLength = 100
	MinDurationDays        = 1
	MaxDurationDays        = 365
)

const day = 24 * time.Hour

// Participant is one member of a challenge.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Steps    int64     `json:"steps"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Challenge is a time-boxed group step competition.
type Challenge struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         ChallengeType `json:"type"`
	TargetSteps  int64         `json:"targetSteps"`
	DurationDays int           `json:"duration"`
	StartDate    time.Time     `json:"startDate"`
	EndDate      time.Time     `json:"endDate"`
	CreatorID    string        `json:"creatorId"`
	Participants []Participant `json:"participants"`
	InviteCode   string        `json:"inviteCode"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Status reports active while now is before EndDate, completed from EndDate on.
func (c Challenge) Status(now time.Time) ChallengeStatus {
	if now.Before(c.EndDate) {
		return StatusActive
	}
	return StatusCompleted
}

// Participant returns the member with userID.
func (c Challenge) Participant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.ID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// HasParticipant reports membership.
func (c Challenge) HasParticipant(userID string) bool {
	_, ok := c.Participant(userID)
	return ok
}

// ChallengeStore captures challenge persistence.
//
// CreateChallenge persists the challenge and its seeded participants atomically
// and returns ErrInviteCodeTaken when the invite code is already used.
// AddParticipant performs the duplicate check and the append as one operation
// and returns ErrAlreadyJoined or ErrChallengeNotFound. Lookups return nil, nil
// when nothing matches.
type ChallengeStore interface {
	CreateChallenge(ctx context.Context, challenge Challenge, idempotencyKey string) error
	FindChallengeByIdempotency(ctx context.Context, creatorID, idempotencyKey string) (*Challenge, error)
	GetChallenge(ctx context.Context, challengeID string) (*Challenge, error)
	GetChallengeByInviteCode(ctx context.Context, inviteCode string) (*Challenge, error)
	InviteCodeExists(ctx context.Context, inviteCode string) (bool, error)
	AddParticipant(ctx context.Context, challengeID string, participant Participant) error
	ListChallengesForUser(ctx context.Context, userID string) ([]Challenge, error)
	ListActiveChallenges(ctx context.Context, now time.Time) ([]Challenge, error)
}

// StandingsStore recomputes a participant's total from the ledger window
// [from, to) and stores it as one atomic step, so a refresh that started
// earlier can never overwrite a newer total. It returns ErrUserNotFound when
// userID is not a participant.
type StandingsStore interface {
	RecomputeParticipantSteps(ctx context.Context, challengeID, userID string, from, to time.Time) (int64, error)
}

// ChallengeService owns challenge lifecycle, membership and standings.
type ChallengeService struct {
	store     ChallengeStore
	standings StandingsStore
	codes     InviteCodeGenerator
	now       Clock
	logger    *zap.Logger
}

// NewChallengeService constructs a ChallengeService. standings keeps
// participant totals in line with the ledger.
func NewChallengeService(store ChallengeStore, standings StandingsStore, opts ...Option) *ChallengeService {
	o := buildOptions(opts)
	return &ChallengeService{
		store:     store,
		standings: standings,
		codes:     o.Codes,
		now:       o.Clock,
		logger:    o.Logger.Named("challenges"),
	}
}

// Now exposes the service clock so callers derive status consistently.
func (s *ChallengeService) Now() time.Time {
	return s.now()
}

// CreateChallengeInput captures the payload from the API layer.
type CreateChallengeInput struct {
	Name           string
	Type           string
	TargetSteps    int64
	DurationDays   int
	CreatorID      string
	CreatorName    string
	IdempotencyKey string
}

// CreateChallengeResult is the outcome of CreateChallenge.
type CreateChallengeResult struct {
	Challenge Challenge
	Message   string
	Replay    bool
}

func (in CreateChallengeInput) validate() (string, ChallengeType, error) {
	name := strings.TrimSpace(in.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > MaxChallengeNameLength {
		return "", "", Validationf("name must be between 1 and %d characters", MaxChallengeNameLength)
	}
	challengeType, err := ParseChallengeType(in.Type)
	if err != nil {
		return "", "", err
	}
	if in.TargetSteps <= 0 {
		return "", "", Validationf("targetSteps must be positive")
	}
	if in.DurationDays < MinDurationDays || in.DurationDays > MaxDurationDays {
		return "", "", Validationf("duration must be between %d and %d days", MinDurationDays, MaxDurationDays)
	}
	if strings.TrimSpace(in.CreatorID) == "" {
		return "", "", Validationf("creatorId is required")
	}
	return name, challengeType, nil
}

// CreateChallenge validates the request, issues a unique invite code and
// seeds the creator as the first participant.
func (s *ChallengeService) CreateChallenge(ctx context.Context, input CreateChallengeInput) (*CreateChallengeResult, error) {
	name, challengeType, err := input.validate()
	if err != nil {
		return nil, err
	}

	if input.IdempotencyKey != "" {
		existing, err := s.store.FindChallengeByIdempotency(ctx, input.CreatorID, input.IdempotencyKey)
		if err != nil {
			return nil, unavailable("lookup idempotency key", err)
		}
		if existing != nil {
			return &CreateChallengeResult{Challenge: *existing, Message: createdMessage(existing.Name), Replay: true}, nil
		}
	}

	now := s.now().UTC()
	creatorName := strings.TrimSpace(input.CreatorName)
	if creatorName == "" {
		creatorName = input.CreatorID
	}
	challenge := Challenge{
		ID:           uuid.NewString(),
		Name:         name,
		Type:         challengeType,
		TargetSteps:  input.TargetSteps,
		DurationDays: input.DurationDays,
		StartDate:    now,
		EndDate:      now.Add(time.Duration(input.DurationDays) * day),
		CreatorID:    input.CreatorID,
		Participants: []Participant{{ID: input.CreatorID, Name: creatorName, Steps: 0, JoinedAt: now}},
		CreatedAt:    now,
	}

	for attempt := 1; attempt <= maxInviteAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return nil, unavailable("generate invite code", err)
		}
		taken, err := s.store.InviteCodeExists(ctx, code)
		if err != nil {
			return nil, unavailable("check invite code", err)
		}
		if taken {
			s.logger.Debug("invite code collision", zap.Int("attempt", attempt))
			continue
		}

		challenge.InviteCode = code
		err = s.store.CreateChallenge(ctx, challenge, input.IdempotencyKey)
		if errors.Is(err, ErrInviteCodeTaken) {
			s.logger.Debug("invite code collision on insert", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, unavailable("create challenge", err)
		}

		s.logger.Info("challenge created",
			zap.String("challenge_id", challenge.ID),
			zap.String("creator_id", challenge.CreatorID),
			zap.Int("duration_days", challenge.DurationDays),
		)
		return &CreateChallengeResult{Challenge: challenge, Message: createdMessage(challenge.Name)}, nil
	}

	return nil, NewError(ErrCodeUnavailable, fmt.Sprintf("could not allocate a unique invite code after %d attempts", maxInviteAttempts))
}

func createdMessage(name string) string {
	return fmt.Sprintf("Challenge %q created successfully!", name)
}

// JoinChallengeInput captures a join request.
type JoinChallengeInput struct {
	InviteCode string
	UserID     string
	UserName   string
}

// JoinChallengeResult is the outcome of JoinChallenge.
type JoinChallengeResult struct {
	ChallengeID string
	Message     string
}

// JoinChallenge resolves an invite code and appends the caller as a participant.
func (s *ChallengeService) JoinChallenge(ctx context.Context, input JoinChallengeInput) (*JoinChallengeResult, error) {
	code, err := NormalizeInviteCode(input.InviteCode)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, Validationf("userId is required")
	}

	challenge, err := s.store.GetChallengeByInviteCode(ctx, code)
	if err != nil {
		return nil, unavailable("lookup invite code", err)
	}
	if challenge == nil {
		return nil, ErrInviteNotFound
	}

	now := s.now().UTC()
	if challenge.Status(now) == StatusCompleted {
		return nil, Validationf("challenge %q has already ended", challenge.Name)
	}

	name := strings.TrimSpace(input.UserName)
	if name == "" {
		name = input.UserID
	}
	participant := Participant{ID: input.UserID, Name: name, Steps: 0, JoinedAt: now}
	if err := s.store.AddParticipant(ctx, challenge.ID, participant); err != nil {
		return nil, unavailable("add participant", err)
	}

	s.logger.Info("participant joined", zap.String("challenge_id", challenge.ID), zap.String("user_id", input.UserID))
	return &JoinChallengeResult{
		ChallengeID: challenge.ID,
		Message:     fmt.Sprintf("Successfully joined %q!", challenge.Name),
	}, nil
}

// ListChallenges returns the challenges userID participates in, newest first.
func (s *ChallengeService) ListChallenges(ctx context.Context, userID, status string) ([]Challenge, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, Validationf("userId is required")
	}
	filter, err := ParseStatusFilter(status)
	if err != nil {
		return nil, err
	}

	challenges, err := s.store.ListChallengesForUser(ctx, userID)
	if err != nil {
		return nil, unavailable("list challenges", err)
	}

	now := s.now()
	out := make([]Challenge, 0, len(challenges))
	for _, c := range challenges {
		if filter.Matches(c.Status(now)) {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetChallenge fetches a challenge visible to userID. Non-members see NOT_FOUND.
func (s *ChallengeService) GetChallenge(ctx context.Context, challengeID, userID string) (*Challenge, error) {
	if strings.TrimSpace(challengeID) == "" {
		return nil, Validationf("challengeId is required")
	}
	challenge, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, unavailable("get challenge", err)
	}
	if challenge == nil || !challenge.HasParticipant(userID) {
		return nil, ErrChallengeNotFound
	}
	return challenge, nil
}

// RefreshParticipant recomputes one participant's total from the ledger over
// the challenge window [StartDate, EndDate).
func (s *ChallengeService) RefreshParticipant(ctx context.Context, challengeID, userID string) (int64, error) {
	challenge, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return 0, unavailable("get challenge", err)
	}
	if challenge == nil {
		return 0, ErrChallengeNotFound
	}
	if !challenge.HasParticipant(userID) {
		return 0, ErrUserNotFound
	}
	return s.refresh(ctx, *challenge, userID)
}

func (s *ChallengeService) refresh(ctx context.Context, challenge Challenge, userID string) (int64, error) {
	total, err := s.standings.RecomputeParticipantSteps(ctx, challenge.ID, userID, challenge.StartDate, challenge.EndDate)
	if err != nil {
		return 0, unavailable("recompute participant steps", err)
	}
	return total, nil
}

// RefreshUser recomputes userID's totals in every challenge they belong to and
// returns how many challenges were refreshed.
func (s *ChallengeService) RefreshUser(ctx context.Context, userID string) (int, error) {
	challenges, err := s.store.ListChallengesForUser(ctx, userID)
	if err != nil {
		return 0, unavailable("list challenges", err)
	}

	var (
		refreshed int
		errs      []error
	)
	for _, c := range challenges {
		if _, err := s.refresh(ctx, c, userID); err != nil {
			errs = append(errs, fmt.Errorf("challenge %s: %w", c.ID, err))
			continue
		}
		refreshed++
	}
	return refreshed, errors.Join(errs...)
}

// RefreshActive recomputes every participant of every active challenge and
// returns the number of participants refreshed.
func (s *ChallengeService) RefreshActive(ctx context.Context) (int, error) {
	challenges, err := s.store.ListActiveChallenges(ctx, s.now())
	if err != nil {
		return 0, unavailable("list active challenges", err)
	}

	var (
		refreshed int
		errs      []error
	)
	for _, c := range challenges {
		for _, p := range c.Participants {
			if err := ctx.Err(); err != nil {
				return refreshed, err
			}
			if _, err := s.refresh(ctx, c, p.ID); err != nil {
				errs = append(errs, fmt.Errorf("challenge %s participant %s: %w", c.ID, p.ID, err))
				continue
			}
			refreshed++
		}
	}
	return refreshed, errors.Join(errs...)
}
