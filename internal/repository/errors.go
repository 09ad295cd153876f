package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrVersionConflict is returned when an optimistic update finds the row
	// at a different version than the caller read.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateEmail is returned when a unique email constraint fails.
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrGenerationSuperseded is returned when a generation writes to a set
	// another generation has since claimed.
	ErrGenerationSuperseded = errors.New("generation superseded by a newer run")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
