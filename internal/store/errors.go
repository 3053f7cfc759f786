package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique constraint.
var ErrConflict = errors.New("conflict")

const uniqueViolation = pq.ErrorCode("23505")

// ConflictError reports which unique column rejected a write.
// It matches ErrConflict with errors.Is.
type ConflictError struct {
	Column string
}

func (e *ConflictError) Error() string {
	if e.Column == "" {
		return "unique constraint violated"
	}
	return "unique constraint violated on " + e.Column
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// translateError maps driver errors onto the store sentinels. Unrecognised
// errors are returned unchanged.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &ConflictError{Column: constraintColumn(pqErr.Constraint)}
	}
	return err
}

// constraintColumn extracts the column from a "<table>_<column>_key" constraint name.
func constraintColumn(constraint string) string {
	name := strings.TrimSuffix(constraint, "_key")
	if idx := strings.Index(name, "_"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
