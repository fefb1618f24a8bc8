package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyPrompt is returned when a prompt has no user text.
	ErrEmptyPrompt = errors.New("prompt text cannot be empty")

	// ErrNilLogger is returned when the streamer is created without a logger.
	ErrNilLogger = errors.New("logger cannot be nil")
)
