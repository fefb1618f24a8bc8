package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity or request fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or empty.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidOutputKind is returned when an output kind is not one of the
	// supported enumeration values.
	ErrInvalidOutputKind = errors.New("invalid output kind")

	// ErrInvalidTransition is returned when an output status change is not allowed.
	ErrInvalidTransition = errors.New("invalid output status transition")

	// ErrNodeNotFound is returned when a mind map node does not exist.
	ErrNodeNotFound = errors.New("mind map node not found")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
