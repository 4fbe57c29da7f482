package outbox

const activityLoggedSchema = `{
  "type": "object",
  "title": "ActivityLogged",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_type": {"type": "string"},
    "original_quantity": {"type": "number"},
    "original_unit": {"type": "string"},
    "steps": {"type": "integer"},
    "date": {"type": "string", "format": "date-time"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "activity_type", "original_quantity", "original_unit", "steps", "date", "created_at"],
  "additionalProperties": false
}`

const challengeCreatedSchema = `{
  "type": "object",
  "title": "ChallengeCreated",
  "properties": {
    "challenge_id": {"type": "string"},
    "creator_id": {"type": "string"},
    "name": {"type": "string"},
    "challenge_type": {"type": "string"},
    "target_steps": {"type": "integer"},
    "start_date": {"type": "string", "format": "date-time"},
    "end_date": {"type": "string", "format": "date-time"}
  },
  "required": ["challenge_id", "creator_id", "name", "challenge_type", "target_steps", "start_date", "end_date"],
  "additionalProperties": false
}`

const participantJoinedSchema = `{
  "type": "object",
  "title": "ParticipantJoined",
  "properties": {
    "challenge_id": {"type": "string"},
    "user_id": {"type": "string"},
    "name": {"type": "string"},
    "joined_at": {"type": "string", "format": "date-time"}
  },
  "required": ["challenge_id", "user_id", "name", "joined_at"],
  "additionalProperties": false
}`
