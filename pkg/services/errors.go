// Package services provides the workflow and job store semantics on top of
// the persistence layer, plus standardized error types for the web boundary.
package services

import "errors"

// Business logic errors. Validation errors map to 400 responses, conflict
// errors to 409.
var (
	// Validation errors (400 Bad Request).
	ErrFirstBlockMustBeRead = errors.New("the first block of a non-empty workflow must be a read_csv block")
	ErrReadBlockNotFirst    = errors.New("a read_csv block is only allowed at the first position")
	ErrInvalidBlockParams   = errors.New("invalid block params")

	// Business logic conflicts (409 Conflict).
	ErrWorkflowInUse = errors.New("workflow has pending or running jobs")
)

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrFirstBlockMustBeRead) ||
		errors.Is(err, ErrReadBlockNotFirst) ||
		errors.Is(err, ErrInvalidBlockParams)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowInUse)
}
