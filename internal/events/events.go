// Package events defines the payloads Steppr publishes through the outbox.
package events

import "time"

// Event types carried in the outbox and the Kafka event_type header.
const (
	TypeActivityLogged    = "activity.logged"
	TypeChallengeCreated  = "challenge.created"
	TypeParticipantJoined = "challenge.participant_joined"
)

// Kafka topics.
const (
	TopicActivities = "activity_events"
	TopicChallenges = "challenge_events"
)

// Kafka record headers set by the outbox dispatcher.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
	HeaderAggregateID   = "aggregate_id"
	HeaderEventID       = "event_id"
)

// ActivityLogged is emitted when an activity is appended to the ledger.
type ActivityLogged struct {
	ActivityID       string    `json:"activity_id"`
	UserID           string    `json:"user_id"`
	ActivityType     string    `json:"activity_type"`
	OriginalQuantity float64   `json:"original_quantity"`
	OriginalUnit     string    `json:"original_unit"`
	Steps            int64     `json:"steps"`
	Date             time.Time `json:"date"`
	CreatedAt        time.Time `json:"created_at"`
}

// ChallengeCreated is emitted when a challenge and its creator participant are stored.
type ChallengeCreated struct {
	ChallengeID   string    `json:"challenge_id"`
	CreatorID     string    `json:"creator_id"`
	Name          string    `json:"name"`
	ChallengeType string    `json:"challenge_type"`
	TargetSteps   int64     `json:"target_steps"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

// ParticipantJoined is emitted when a user joins a challenge.
type ParticipantJoined struct {
	ChallengeID string    `json:"challenge_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	JoinedAt    time.Time `json:"joined_at"`
}
