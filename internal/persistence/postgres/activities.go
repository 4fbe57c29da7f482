package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/events"
	"github.com/chazstevenson112/Steppr/internal/observability"
)

const (
	activityColumns = `activity_id, user_id, activity_type, original_quantity, original_unit, steps, occurred_at, created_at`
	sumStepsQuery   = `SELECT COALESCE(SUM(steps), 0)::BIGINT FROM activities WHERE user_id=$1 AND occurred_at >= $2 AND occurred_at < $3`
)

// AppendActivity stores the activity and its activity.logged event in one transaction.
func (r *Repository) AppendActivity(ctx context.Context, activity domain.Activity, idempotencyKey string) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO activities (` + activityColumns + `, idempotency_key)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
		if _, err := tx.Exec(ctx, stmt,
			activity.ID,
			activity.UserID,
			string(activity.Type),
			activity.OriginalQuantity,
			string(activity.OriginalUnit),
			activity.Steps,
			activity.Date,
			activity.CreatedAt,
			nullIfEmpty(idempotencyKey),
		); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, outboxEvent{
			eventType:    events.TypeActivityLogged,
			aggregateID:  activity.ID,
			partitionKey: activity.UserID,
			dedupeKey:    activity.ID + ":" + events.TypeActivityLogged,
			payload: events.ActivityLogged{
				ActivityID:       activity.ID,
				UserID:           activity.UserID,
				ActivityType:     string(activity.Type),
				OriginalQuantity: activity.OriginalQuantity,
				OriginalUnit:     string(activity.OriginalUnit),
				Steps:            activity.Steps,
				Date:             activity.Date,
				CreatedAt:        activity.CreatedAt,
			},
		})
	})
	if uniqueViolationOn(err, "activities_idempotency") {
		return domain.ErrIdempotencyConflict
	}
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.CreatedAt)
	return nil
}

// FindActivityByIdempotency returns the activity stored under the key, if any.
func (r *Repository) FindActivityByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.Activity, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	row := r.pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE user_id=$1 AND idempotency_key=$2`,
		userID, idempotencyKey,
	)
	activity, err := scanActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// ListActivities returns one page of a user's ledger and the filtered total.
func (r *Repository) ListActivities(ctx context.Context, query domain.ActivityQuery) ([]domain.Activity, int, error) {
	const filter = ` FROM activities WHERE user_id=$1 AND ($2::text = '' OR activity_type = $2::text)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+filter, query.UserID, string(query.Type)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+filter+` ORDER BY occurred_at DESC, created_at DESC, activity_id DESC LIMIT $3 OFFSET $4`,
		query.UserID, string(query.Type), query.Limit, query.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, query.Limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// SumSteps aggregates steps with from <= occurred_at < to.
func (r *Repository) SumSteps(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, sumStepsQuery, userID, from, to).Scan(&total)
	return total, err
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a            domain.Activity
		activityType string
		unit         string
	)
	if err := row.Scan(&a.ID, &a.UserID, &activityType, &a.OriginalQuantity, &unit, &a.Steps, &a.Date, &a.CreatedAt); err != nil {
		return domain.Activity{}, err
	}
	a.Type = domain.ActivityType(activityType)
	a.OriginalUnit = domain.InputUnit(unit)
	a.Date = a.Date.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
