package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors returned by the record stores.
var (
	// ErrStatusConflict means a status compare-and-swap found the request in a
	// different state than expected.
	ErrStatusConflict = errors.New("request status changed concurrently")
	// ErrAvailabilityConflict means an availability compare-and-swap found the
	// interpreter in a different state than expected.
	ErrAvailabilityConflict = errors.New("interpreter availability changed concurrently")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
