package domain

import "errors"

// Error kinds surfaced across the API boundary. Handlers map these to
// stable error codes; storage-layer errors are wrapped, never leaked raw.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateReference  = errors.New("duplicate bank reference")
	ErrDivisionUndefined   = errors.New("equal split over zero units")
	ErrConcurrencyConflict = errors.New("concurrent modification")
)
