package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const (
	uniqueViolationCode      = "23505"
	serializationFailureCode = "40001"
)

// isUniqueViolation reports whether the error is a unique constraint violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

// isSerializationFailure reports whether the error is a serializable
// transaction conflict
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == serializationFailureCode
}
