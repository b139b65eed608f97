package domain

import "errors"

// Error taxonomy. Callers classify with errors.Is; everything below the
// service layer wraps one of these with context (logical key, reason).
var (
	// ErrNotFound: the logical key has no resolvable current version.
	ErrNotFound = errors.New("not found")

	// ErrConflict: a lifecycle precondition was violated (already deleted,
	// not deleted, duplicate identifier).
	ErrConflict = errors.New("precondition failed")

	// ErrValidation: a required payload field is missing or malformed.
	ErrValidation = errors.New("validation error")

	// ErrProvider: the external market-data fetch failed.
	ErrProvider = errors.New("provider error")

	// ErrStore: a store read or write failed.
	ErrStore = errors.New("store error")
)
