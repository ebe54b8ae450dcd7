package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes we branch on. 23P01 is raised by the appointments
// overlap exclusion constraint, 23505 by unique indexes.
const (
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
)

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeExclusionViolation
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, e.g. registering a user email twice.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
