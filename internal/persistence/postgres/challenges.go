package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/events"
)

const challengeColumns = `c.challenge_id, c.name, c.challenge_type, c.target_steps, c.duration_days, c.start_date, c.end_date, c.creator_id, c.invite_code, c.created_at`

// CreateChallenge stores the challenge, its seeded participants and the
// challenge.created event in one transaction.
func (r *Repository) CreateChallenge(ctx context.Context, challenge domain.Challenge, idempotencyKey string) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO challenges (challenge_id, name, challenge_type, target_steps, duration_days, start_date, end_date, creator_id, invite_code, idempotency_key, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
		if _, err := tx.Exec(ctx, stmt,
			challenge.ID,
			challenge.Name,
			string(challenge.Type),
			challenge.TargetSteps,
			challenge.DurationDays,
			challenge.StartDate,
			challenge.EndDate,
			challenge.CreatorID,
			challenge.InviteCode,
			nullIfEmpty(idempotencyKey),
			challenge.CreatedAt,
		); err != nil {
			return err
		}

		for _, p := range challenge.Participants {
			if err := insertParticipant(ctx, tx, challenge.ID, p); err != nil {
				return err
			}
		}

		return insertOutbox(ctx, tx, outboxEvent{
			eventType:    events.TypeChallengeCreated,
			aggregateID:  challenge.ID,
			partitionKey: challenge.ID,
			dedupeKey:    challenge.ID + ":" + events.TypeChallengeCreated,
			payload: events.ChallengeCreated{
				ChallengeID:   challenge.ID,
				CreatorID:     challenge.CreatorID,
				Name:          challenge.Name,
				ChallengeType: string(challenge.Type),
				TargetSteps:   challenge.TargetSteps,
				StartDate:     challenge.StartDate,
				EndDate:       challenge.EndDate,
			},
		})
	})
	if uniqueViolationOn(err, "challenges_invite_code_key") {
		return domain.ErrInviteCodeTaken
	}
	return err
}

// FindChallengeByIdempotency returns the challenge the creator stored under the key.
func (r *Repository) FindChallengeByIdempotency(ctx context.Context, creatorID, idempotencyKey string) (*domain.Challenge, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	return r.getOne(ctx, `WHERE c.creator_id=$1 AND c.idempotency_key=$2`, creatorID, idempotencyKey)
}

// GetChallenge fetches a challenge with its participants in join order.
func (r *Repository) GetChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	return r.getOne(ctx, `WHERE c.challenge_id::text=$1`, challengeID)
}

// GetChallengeByInviteCode resolves an invite code.
func (r *Repository) GetChallengeByInviteCode(ctx context.Context, inviteCode string) (*domain.Challenge, error) {
	return r.getOne(ctx, `WHERE c.invite_code=$1`, inviteCode)
}

// InviteCodeExists reports whether any challenge already uses inviteCode.
func (r *Repository) InviteCodeExists(ctx context.Context, inviteCode string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM challenges WHERE invite_code=$1)`, inviteCode).Scan(&exists)
	return exists, err
}

// AddParticipant locks the challenge row, rejects duplicates and appends the
// participant with its challenge.participant_joined event.
func (r *Repository) AddParticipant(ctx context.Context, challengeID string, participant domain.Participant) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT challenge_id::text FROM challenges WHERE challenge_id::text=$1 FOR UPDATE`, challengeID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrChallengeNotFound
		}
		if err != nil {
			return err
		}

		var member bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM challenge_participants WHERE challenge_id=$1 AND user_id=$2)`,
			challengeID, participant.ID,
		).Scan(&member); err != nil {
			return err
		}
		if member {
			return domain.ErrAlreadyJoined
		}

		if err := insertParticipant(ctx, tx, challengeID, participant); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxEvent{
			eventType:    events.TypeParticipantJoined,
			aggregateID:  challengeID,
			partitionKey: challengeID,
			dedupeKey:    challengeID + ":" + participant.ID + ":" + events.TypeParticipantJoined,
			payload: events.ParticipantJoined{
				ChallengeID: challengeID,
				UserID:      participant.ID,
				Name:        participant.Name,
				JoinedAt:    participant.JoinedAt,
			},
		})
	})
	if uniqueViolationOn(err, "challenge_participants_pkey") {
		return domain.ErrAlreadyJoined
	}
	return err
}

// ListChallengesForUser returns the user's challenges, newest first.
func (r *Repository) ListChallengesForUser(ctx context.Context, userID string) ([]domain.Challenge, error) {
	return r.list(ctx,
		`JOIN challenge_participants cp ON cp.challenge_id = c.challenge_id WHERE cp.user_id=$1`,
		userID,
	)
}

// ListActiveChallenges returns challenges whose window has not ended at now.
func (r *Repository) ListActiveChallenges(ctx context.Context, now time.Time) ([]domain.Challenge, error) {
	return r.list(ctx, `WHERE c.end_date > $1`, now)
}

// RecomputeParticipantSteps sums the participant's ledger window and stores
// it. The participant row is locked before the sum, so overlapping refreshes
// run one after the other and each sees every activity committed before it.
func (r *Repository) RecomputeParticipantSteps(ctx context.Context, challengeID, userID string, from, to time.Time) (int64, error) {
	var total int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var current int64
		err := tx.QueryRow(ctx,
			`SELECT steps FROM challenge_participants WHERE challenge_id::text=$1 AND user_id=$2 FOR UPDATE`,
			challengeID, userID,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.QueryRow(ctx, sumStepsQuery, userID, from, to).Scan(&total); err != nil {
			return err
		}
		if total == current {
			return nil
		}
		_, err = tx.Exec(ctx,
			`UPDATE challenge_participants SET steps=$3 WHERE challenge_id::text=$1 AND user_id=$2`,
			challengeID, userID, total,
		)
		return err
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func insertParticipant(ctx context.Context, tx pgx.Tx, challengeID string, p domain.Participant) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO challenge_participants (challenge_id, user_id, name, steps, joined_at) VALUES ($1,$2,$3,$4,$5)`,
		challengeID, p.ID, p.Name, p.Steps, p.JoinedAt,
	)
	return err
}

func (r *Repository) getOne(ctx context.Context, where string, args ...any) (*domain.Challenge, error) {
	challenges, err := r.list(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	if len(challenges) == 0 {
		return nil, nil
	}
	return &challenges[0], nil
}

// list loads challenges matching clause and attaches their participants.
func (r *Repository) list(ctx context.Context, clause string, args ...any) ([]domain.Challenge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+challengeColumns+` FROM challenges c `+clause+` ORDER BY c.created_at DESC, c.challenge_id DESC`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	challenges := make([]domain.Challenge, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			c             domain.Challenge
			challengeType string
		)
		if err := rows.Scan(&c.ID, &c.Name, &challengeType, &c.TargetSteps, &c.DurationDays, &c.StartDate, &c.EndDate, &c.CreatorID, &c.InviteCode, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Type = domain.ChallengeType(challengeType)
		c.StartDate = c.StartDate.UTC()
		c.EndDate = c.EndDate.UTC()
		c.CreatedAt = c.CreatedAt.UTC()
		c.Participants = []domain.Participant{}
		index[c.ID] = len(challenges)
		challenges = append(challenges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(challenges) == 0 {
		return challenges, nil
	}

	ids := make([]string, 0, len(challenges))
	for _, c := range challenges {
		ids = append(ids, c.ID)
	}
	participants, err := r.pool.Query(ctx,
		`SELECT challenge_id::text, user_id, name, steps, joined_at FROM challenge_participants
         WHERE challenge_id::text = ANY($1) ORDER BY join_seq`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer participants.Close()

	for participants.Next() {
		var (
			challengeID string
			p           domain.Participant
		)
		if err := participants.Scan(&challengeID, &p.ID, &p.Name, &p.Steps, &p.JoinedAt); err != nil {
			return nil, err
		}
		p.JoinedAt = p.JoinedAt.UTC()
		if i, ok := index[challengeID]; ok {
			challenges[i].Participants = append(challenges[i].Participants, p)
		}
	}
	return challenges, participants.Err()
}
