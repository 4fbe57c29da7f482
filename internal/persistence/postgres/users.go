package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/chazstevenson112/Steppr/internal/domain"
)

// GetUser returns the stored user or nil when unknown.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, display_name, email, photo_url, daily_step_goal, created_at, updated_at FROM users WHERE user_id=$1`,
		userID,
	).Scan(&u.ID, &u.DisplayName, &u.Email, &u.PhotoURL, &u.DailyStepGoal, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// SaveUser upserts the user profile.
func (r *Repository) SaveUser(ctx context.Context, user domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (user_id, display_name, email, photo_url, daily_step_goal, created_at, updated_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         ON CONFLICT (user_id) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            email = EXCLUDED.email,
            photo_url = EXCLUDED.photo_url,
            daily_step_goal = EXCLUDED.daily_step_goal,
            updated_at = EXCLUDED.updated_at`,
		user.ID, user.DisplayName, user.Email, user.PhotoURL, user.DailyStepGoal, user.CreatedAt, user.UpdatedAt,
	)
	return err
}
