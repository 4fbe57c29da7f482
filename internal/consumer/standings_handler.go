package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/events"
	"github.com/chazstevenson112/Steppr/internal/observability"
)

// Standings recomputes participant step totals from the ledger.
type Standings interface {
	RefreshUser(ctx context.Context, userID string) (int, error)
	RefreshParticipant(ctx context.Context, challengeID, userID string) (int64, error)
}

// StandingsHandler keeps challenge standings in step with the activity ledger.
type StandingsHandler struct {
	standings Standings
	logger    *zap.Logger
}

// NewStandingsHandler constructs a handler that refreshes standings through s.
func NewStandingsHandler(s Standings, logger *zap.Logger) *StandingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StandingsHandler{standings: s, logger: logger}
}

// Handle refreshes the standings touched by msg. Events it does not act on are acknowledged.
func (h *StandingsHandler) Handle(ctx context.Context, msg Message) error {
	started := time.Now()

	switch msg.EventType {
	case events.TypeActivityLogged:
		var evt events.ActivityLogged
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		n, err := h.standings.RefreshUser(ctx, evt.UserID)
		if err != nil {
			return err
		}
		h.logger.Debug("standings refreshed",
			zap.String("user_id", evt.UserID),
			zap.Int("challenges", n),
		)

	case events.TypeParticipantJoined:
		var evt events.ParticipantJoined
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		if _, err := h.standings.RefreshParticipant(ctx, evt.ChallengeID, evt.UserID); err != nil {
			return err
		}

	case events.TypeChallengeCreated:
		var evt events.ChallengeCreated
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		if _, err := h.standings.RefreshParticipant(ctx, evt.ChallengeID, evt.CreatorID); err != nil {
			return err
		}

	default:
		h.logger.Debug("ignoring event", zap.String("event_type", msg.EventType))
		return nil
	}

	observability.RecordStandingsRefresh("consumer", started)
	return nil
}
