package dbx

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// ErrUniqueViolation is returned (wrapped in a *UniqueViolationError) when an
// insert or update hits a unique constraint.
var ErrUniqueViolation = errors.New("unique violation")

// UniqueViolationError names the violated constraint so callers can tell
// e.g. a duplicate username from a duplicate email.
type UniqueViolationError struct {
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on %s: %v", e.Constraint, e.Err)
}

func (e *UniqueViolationError) Unwrap() []error { return []error{ErrUniqueViolation, e.Err} }

// ClassifyError converts a pgx unique violation into *UniqueViolationError
// and returns any other error unchanged.
func ClassifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &UniqueViolationError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}

// ViolatedConstraint returns the constraint name when err is a unique
// violation.
func ViolatedConstraint(err error) (string, bool) {
	var uv *UniqueViolationError
	if errors.As(err, &uv) {
		return uv.Constraint, true
	}
	return "", false
}
