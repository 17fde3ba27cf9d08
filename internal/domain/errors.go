// Package domain holds the translation job model, content enums and the
// read models served by the API.
package domain

import "errors"

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidRequest is returned for malformed input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnsupportedField is returned when a field is not translatable for a content type.
	ErrUnsupportedField = errors.New("unsupported field for content type")
	// ErrJobNotClaimable is returned when a job is not in a claimable state.
	ErrJobNotClaimable = errors.New("job not claimable")
	// ErrInvalidTransition is returned when a job cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid job status transition")
)
