package repositories

import (
	"errors"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// notFound maps pgx.ErrNoRows to a NotFound error and passes other errors through.
func notFound(err error, reason, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(reason, message)
	}
	return err
}
