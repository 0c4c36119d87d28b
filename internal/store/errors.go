package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("conflict")

	// ErrConstraint is returned when a check, not-null or foreign key
	// constraint rejects a write, or a value does not fit its column.
	ErrConstraint = errors.New("constraint violation")
)

const (
	codeStringTooLong       = "22001"
	codeNumericOutOfRange   = "22003"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
)

// translateError maps postgres constraint failures onto the store sentinels
// and leaves everything else untouched.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	case codeCheckViolation, codeForeignKeyViolation, codeNotNullViolation:
		return fmt.Errorf("%w: %s", ErrConstraint, constraintName(pqErr))
	case codeStringTooLong, codeNumericOutOfRange:
		return fmt.Errorf("%w: %s", ErrConstraint, pqErr.Message)
	default:
		return err
	}
}

func constraintName(pqErr *pq.Error) string {
	if pqErr.Constraint != "" {
		return pqErr.Constraint
	}
	return pqErr.Column
}
