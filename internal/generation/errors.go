package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when the backend stream fails for any general reason
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidResponse is returned when the model output cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrNoContent is returned when the selected documents contain no usable text
	ErrNoContent = errors.New("no content to generate from")

	// ErrUnsupportedKind is returned for an output kind the generator cannot produce
	ErrUnsupportedKind = errors.New("unsupported output kind")
)
