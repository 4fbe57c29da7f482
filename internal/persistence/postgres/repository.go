package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chazstevenson112/Steppr/internal/domain"
)

const uniqueViolation = "23505"

// Repository provides Postgres-backed persistence for the ledger, challenges,
// users and their outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ domain.ActivityStore  = (*Repository)(nil)
	_ domain.ChallengeStore = (*Repository)(nil)
	_ domain.UserStore      = (*Repository)(nil)
	_ domain.StandingsStore = (*Repository)(nil)
)

// inTx runs fn inside a transaction, committing when it returns nil.
func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// uniqueViolationOn reports whether err is a unique violation of constraint.
// An empty constraint matches any unique violation.
func uniqueViolationOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
