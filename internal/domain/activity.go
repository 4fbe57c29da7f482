package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Activity is one logged exercise event. It is immutable once created.
type Activity struct {
	ID               string       `json:"id"`
	UserID           string       `json:"userId"`
	Type             ActivityType `json:"type"`
	OriginalQuantity float64      `json:"originalQuantity"`
	OriginalUnit     InputUnit    `json:"originalUnit"`
	Steps            int64        `json:"steps"`
	Date             time.Time    `json:"date"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// Pagination bounds for ledger listings.
const (
	DefaultActivityLimit = 20
	MaxActivityLimit     = 100
)

// ActivityQuery filters a user's ledger. Type is optional.
type ActivityQuery struct {
	UserID string
	Type   ActivityType
	Limit  int
	Offset int
}

// ActivityPage is one page of a ledger listing.
type ActivityPage struct {
	Activities []Activity `json:"activities"`
	Total      int        `json:"total"`
	HasMore    bool       `json:"hasMore"`
}

// ActivityStore captures ledger persistence. Listings are ordered by date
// descending, then createdAt descending, then id descending. AppendActivity
// returns ErrIdempotencyConflict when the user already stored an activity
// under a non-empty idempotencyKey.
type ActivityStore interface {
	StepAggregator
	AppendActivity(ctx context.Context, activity Activity, idempotencyKey string) error
	FindActivityByIdempotency(ctx context.Context, userID, idempotencyKey string) (*Activity, error)
	ListActivities(ctx context.Context, query ActivityQuery) ([]Activity, int, error)
}

// RawActivity is the unvalidated activity payload received from a client.
type RawActivity struct {
	UserID   string
	Type     string
	Quantity float64
	Unit     string
	Date     time.Time
}

// Normalizer validates raw input and produces canonical activities.
type Normalizer struct {
	Converter Converter
}

// Normalize validates raw and converts it into an Activity created at now.
// It has no side effects; failures are VALIDATION or UNSUPPORTED_UNIT errors.
func (n Normalizer) Normalize(raw RawActivity, now time.Time) (Activity, error) {
	if strings.TrimSpace(raw.UserID) == "" {
		return Activity{}, Validationf("userId is required")
	}
	activityType, err := ParseActivityType(raw.Type)
	if err != nil {
		return Activity{}, err
	}
	unit, err := ParseInputUnit(raw.Unit)
	if err != nil {
		return Activity{}, err
	}
	steps, err := n.Converter.Convert(activityType, raw.Quantity, unit)
	if err != nil {
		return Activity{}, err
	}

	date := raw.Date
	if date.IsZero() {
		date = now
	}

	return Activity{
		ID:               uuid.NewString(),
		UserID:           raw.UserID,
		Type:             activityType,
		OriginalQuantity: raw.Quantity,
		OriginalUnit:     unit,
		Steps:            steps,
		Date:             date.UTC(),
		CreatedAt:        now.UTC(),
	}, nil
}

// ConfirmationMessage is the human-readable summary returned after logging an activity.
func ConfirmationMessage(steps int64) string {
	return fmt.Sprintf("Activity logged! Converted to %s steps.", FormatSteps(steps))
}

// FormatSteps renders steps with thousands separators, e.g. 12,500.
func FormatSteps(steps int64) string {
	digits := strconv.FormatInt(steps, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}

// ActivityService runs the ledger workflows.
type ActivityService struct {
	store      ActivityStore
	normalizer Normalizer
	refresher  StandingsRefresher
	now        Clock
	logger     *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(store ActivityStore, opts ...Option) *ActivityService {
	o := buildOptions(opts)
	return &ActivityService{
		store:      store,
		normalizer: Normalizer{Converter: o.Converter},
		refresher:  o.Refresher,
		now:        o.Clock,
		logger:     o.Logger.Named("activities"),
	}
}

// LogActivityInput captures the payload from the API layer.
type LogActivityInput struct {
	RawActivity
	IdempotencyKey string
}

// LogActivityResult is the outcome of LogActivity.
type LogActivityResult struct {
	Activity Activity
	Message  string
	Replay   bool
}

// LogActivity normalizes and appends an activity. A repeated idempotency key
// returns the activity stored by the first request.
func (s *ActivityService) LogActivity(ctx context.Context, input LogActivityInput) (*LogActivityResult, error) {
	activity, err := s.normalizer.Normalize(input.RawActivity, s.now())
	if err != nil {
		return nil, err
	}

	if input.IdempotencyKey != "" {
		replay, err := s.replay(ctx, input.UserID, input.IdempotencyKey)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	if err := s.store.AppendActivity(ctx, activity, input.IdempotencyKey); err != nil {
		if errors.Is(err, ErrIdempotencyConflict) {
			// A concurrent request with the same key won the append.
			replay, err := s.replay(ctx, input.UserID, input.IdempotencyKey)
			if err != nil {
				return nil, err
			}
			if replay != nil {
				return replay, nil
			}
		}
		return nil, unavailable("append activity", err)
	}

	s.logger.Debug("activity logged",
		zap.String("activity_id", activity.ID),
		zap.String("user_id", activity.UserID),
		zap.String("type", string(activity.Type)),
		zap.Int64("steps", activity.Steps),
	)

	if s.refresher != nil {
		if _, err := s.refresher.RefreshUser(ctx, activity.UserID); err != nil {
			// The periodic refresher will converge standings later.
			s.logger.Warn("standings refresh failed", zap.String("user_id", activity.UserID), zap.Error(err))
		}
	}

	return &LogActivityResult{Activity: activity, Message: ConfirmationMessage(activity.Steps)}, nil
}

// replay returns the result stored under key, or nil when the key is unused.
func (s *ActivityService) replay(ctx context.Context, userID, key string) (*LogActivityResult, error) {
	existing, err := s.store.FindActivityByIdempotency(ctx, userID, key)
	if err != nil {
		return nil, unavailable("lookup idempotency key", err)
	}
	if existing == nil {
		return nil, nil
	}
	return &LogActivityResult{Activity: *existing, Message: ConfirmationMessage(existing.Steps), Replay: true}, nil
}

// ListActivitiesInput is the unvalidated listing request. Zero Limit means the default.
type ListActivitiesInput struct {
	UserID string
	Type   string
	Limit  int
	Offset int
}

// ListActivities returns one page of the user's ledger.
func (s *ActivityService) ListActivities(ctx context.Context, input ListActivitiesInput) (ActivityPage, error) {
	query, err := input.query()
	if err != nil {
		return ActivityPage{}, err
	}

	activities, total, err := s.store.ListActivities(ctx, query)
	if err != nil {
		return ActivityPage{}, unavailable("list activities", err)
	}
	if activities == nil {
		activities = []Activity{}
	}
	return ActivityPage{
		Activities: activities,
		Total:      total,
		HasMore:    hasMore(query.Offset, query.Limit, total),
	}, nil
}

// hasMore reports offset+limit < total without overflowing on huge offsets.
func hasMore(offset, limit, total int) bool {
	return offset < total && limit < total-offset
}

func (in ListActivitiesInput) query() (ActivityQuery, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return ActivityQuery{}, Validationf("userId is required")
	}
	limit := in.Limit
	if limit == 0 {
		limit = DefaultActivityLimit
	}
	if limit < 1 || limit > MaxActivityLimit {
		return ActivityQuery{}, Validationf("limit must be between 1 and %d", MaxActivityLimit)
	}
	if in.Offset < 0 {
		return ActivityQuery{}, Validationf("offset must be >= 0")
	}
	query := ActivityQuery{UserID: in.UserID, Limit: limit, Offset: in.Offset}
	if strings.TrimSpace(in.Type) != "" {
		activityType, err := ParseActivityType(in.Type)
		if err != nil {
			return ActivityQuery{}, err
		}
		query.Type = activityType
	}
	return query, nil
}

// SumSteps aggregates the user's steps in [from, to).
func (s *ActivityService) SumSteps(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	total, err := s.store.SumSteps(ctx, userID, from, to)
	if err != nil {
		return 0, unavailable("sum steps", err)
	}
	return total, nil
}
