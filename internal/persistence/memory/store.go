// Package memory provides an in-process store for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/observability"
	"github.com/chazstevenson112/Steppr/internal/persistence"
)

type idempotencyKey struct {
	userID string
	key    string
}

// Store keeps activities, challenges and users in memory. A single mutex
// serializes writers, so challenge creation and joins are atomic.
type Store struct {
	mu sync.RWMutex

	activities        map[string][]domain.Activity
	activityByIdem    map[idempotencyKey]domain.Activity
	challenges        map[string]*domain.Challenge
	challengeByInvite map[string]string
	challengeByIdem   map[idempotencyKey]string
	users             map[string]domain.User
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities:        make(map[string][]domain.Activity),
		activityByIdem:    make(map[idempotencyKey]domain.Activity),
		challenges:        make(map[string]*domain.Challenge),
		challengeByInvite: make(map[string]string),
		challengeByIdem:   make(map[idempotencyKey]string),
		users:             make(map[string]domain.User),
	}
}

var (
	_ domain.ActivityStore  = (*Store)(nil)
	_ domain.ChallengeStore = (*Store)(nil)
	_ domain.UserStore      = (*Store)(nil)
	_ domain.StandingsStore = (*Store)(nil)
)

// AppendActivity implements domain.ActivityStore.
func (s *Store) AppendActivity(ctx context.Context, activity domain.Activity, idempotencyKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idemKey(activity.UserID, idempotencyKey)
	if idempotencyKey != "" {
		if _, taken := s.activityByIdem[key]; taken {
			return domain.ErrIdempotencyConflict
		}
		s.activityByIdem[key] = activity
	}
	s.activities[activity.UserID] = append(s.activities[activity.UserID], activity)
	observability.RecordActivityPersisted(activity.CreatedAt)
	return nil
}

// FindActivityByIdempotency implements domain.ActivityStore.
func (s *Store) FindActivityByIdempotency(ctx context.Context, userID, key string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity, ok := s.activityByIdem[idemKey(userID, key)]
	if !ok {
		return nil, nil
	}
	return &activity, nil
}

// ListActivities implements domain.ActivityStore.
func (s *Store) ListActivities(ctx context.Context, query domain.ActivityQuery) ([]domain.Activity, int, error) {
	s.mu.RLock()
	filtered := make([]domain.Activity, 0, len(s.activities[query.UserID]))
	for _, a := range s.activities[query.UserID] {
		if query.Type == "" || a.Type == query.Type {
			filtered = append(filtered, a)
		}
	}
	s.mu.RUnlock()

	persistence.SortLedger(filtered)
	return persistence.Window(filtered, query.Offset, query.Limit), len(filtered), nil
}

// SumSteps implements domain.StepAggregator.
func (s *Store) SumSteps(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumLocked(userID, from, to), nil
}

func (s *Store) sumLocked(userID string, from, to time.Time) int64 {
	var total int64
	for _, a := range s.activities[userID] {
		if !a.Date.Before(from) && a.Date.Before(to) {
			total += a.Steps
		}
	}
	return total
}

// CreateChallenge implements domain.ChallengeStore.
func (s *Store) CreateChallenge(ctx context.Context, challenge domain.Challenge, idempotencyKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.challengeByInvite[challenge.InviteCode]; taken {
		return domain.ErrInviteCodeTaken
	}
	stored := cloneChallenge(challenge)
	s.challenges[challenge.ID] = &stored
	s.challengeByInvite[challenge.InviteCode] = challenge.ID
	if idempotencyKey != "" {
		s.challengeByIdem[idemKey(challenge.CreatorID, idempotencyKey)] = challenge.ID
	}
	return nil
}

// FindChallengeByIdempotency implements domain.ChallengeStore.
func (s *Store) FindChallengeByIdempotency(ctx context.Context, creatorID, key string) (*domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.challengeByIdem[idemKey(creatorID, key)]
	if !ok {
		return nil, nil
	}
	return s.copyOf(id), nil
}

// GetChallenge implements domain.ChallengeStore.
func (s *Store) GetChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(challengeID), nil
}

// GetChallengeByInviteCode implements domain.ChallengeStore.
func (s *Store) GetChallengeByInviteCode(ctx context.Context, inviteCode string) (*domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.challengeByInvite[inviteCode]
	if !ok {
		return nil, nil
	}
	return s.copyOf(id), nil
}

// InviteCodeExists implements domain.ChallengeStore.
func (s *Store) InviteCodeExists(ctx context.Context, inviteCode string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.challengeByInvite[inviteCode]
	return ok, nil
}

// AddParticipant implements domain.ChallengeStore.
func (s *Store) AddParticipant(ctx context.Context, challengeID string, participant domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[challengeID]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	if challenge.HasParticipant(participant.ID) {
		return domain.ErrAlreadyJoined
	}
	challenge.Participants = append(challenge.Participants, participant)
	return nil
}

// ListChallengesForUser implements domain.ChallengeStore.
func (s *Store) ListChallengesForUser(ctx context.Context, userID string) ([]domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Challenge, 0)
	for _, c := range s.challenges {
		if c.HasParticipant(userID) {
			out = append(out, cloneChallenge(*c))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListActiveChallenges implements domain.ChallengeStore.
func (s *Store) ListActiveChallenges(ctx context.Context, now time.Time) ([]domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Challenge, 0)
	for _, c := range s.challenges {
		if c.Status(now) == domain.StatusActive {
			out = append(out, cloneChallenge(*c))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// RecomputeParticipantSteps implements domain.StandingsStore. The sum and the
// write share the store lock.
func (s *Store) RecomputeParticipantSteps(ctx context.Context, challengeID, userID string, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[challengeID]
	if !ok {
		return 0, domain.ErrChallengeNotFound
	}
	for i := range challenge.Participants {
		if challenge.Participants[i].ID == userID {
			total := s.sumLocked(userID, from, to)
			challenge.Participants[i].Steps = total
			return total, nil
		}
	}
	return 0, domain.ErrUserNotFound
}

// GetUser implements domain.UserStore.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// SaveUser implements domain.UserStore.
func (s *Store) SaveUser(ctx context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *Store) copyOf(challengeID string) *domain.Challenge {
	c, ok := s.challenges[challengeID]
	if !ok {
		return nil
	}
	out := cloneChallenge(*c)
	return &out
}

func cloneChallenge(c domain.Challenge) domain.Challenge {
	participants := make([]domain.Participant, len(c.Participants))
	copy(participants, c.Participants)
	c.Participants = participants
	return c
}

func sortNewestFirst(challenges []domain.Challenge) {
	sort.Slice(challenges, func(i, j int) bool {
		if !challenges[i].CreatedAt.Equal(challenges[j].CreatedAt) {
			return challenges[i].CreatedAt.After(challenges[j].CreatedAt)
		}
		return challenges[i].ID > challenges[j].ID
	})
}

func idemKey(userID, key string) idempotencyKey {
	return idempotencyKey{userID: userID, key: key}
}
