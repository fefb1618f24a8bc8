package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-studio/internal/api/shared"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/store"
	"github.com/phrazzld/scry-studio/internal/task"
)

const defaultErrorMessage = "An unexpected error occurred"

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	// Authorization errors
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrOutputNotFound),
		errors.Is(err, store.ErrDocumentNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrUpdateFailed),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidOutputKind),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrEmptyDocumentID),
		errors.Is(err, domain.ErrEmptyDocumentProjectID),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, task.ErrNoContent),
		errors.Is(err, shared.ErrEmptyBody),
		errors.Is(err, shared.ErrInvalidJSON),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrShuttingDown):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return defaultErrorMessage
	}

	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "Access to this project is not allowed"

	case errors.Is(err, store.ErrOutputNotFound):
		return "Output not found"
	case errors.Is(err, store.ErrDocumentNotFound):
		return "Document not found"
	case errors.Is(err, domain.ErrNodeNotFound):
		return "Node not found"
	case store.IsNotFoundError(err):
		return "Resource not found"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"
	case errors.Is(err, store.ErrUpdateFailed),
		errors.Is(err, domain.ErrInvalidTransition):
		return "Output is already finished"

	case errors.Is(err, domain.ErrInvalidOutputKind):
		return "Invalid output kind"
	case errors.Is(err, task.ErrNotMindMap):
		return "Output is not a mind map"
	case errors.Is(err, task.ErrOutputNotComplete):
		return "Output is not complete yet"
	case errors.Is(err, domain.ErrEmptyContent):
		return "Content cannot be empty"
	case errors.Is(err, task.ErrNoContent):
		return "The selected documents contain no text"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, shared.ErrInvalidJSON):
		return "Invalid request format"
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(err)
	case errors.Is(err, domain.ErrValidation):
		return validationMessage(err)
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrEmptyDocumentID),
		errors.Is(err, domain.ErrEmptyDocumentProjectID),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request"

	case errors.Is(err, task.ErrShuttingDown):
		return "Service is shutting down"

	default:
		return defaultErrorMessage
	}
}

// HandleAPIError writes an error response whose status and message are
// derived from err. defaultMsg replaces the generic message for errors that
// have no specific mapping.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if message == defaultErrorMessage && defaultMsg != "" {
		message = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// validationMessage exposes the detail of a wrapped domain validation error.
func validationMessage(err error) string {
	prefix := domain.ErrValidation.Error() + ": "
	if detail, ok := strings.CutPrefix(err.Error(), prefix); ok && detail != "" {
		return "Invalid request: " + detail
	}
	return "Invalid request"
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short or too small"
	case "max":
		return "too long or too large"
	case "oneof":
		return "invalid value"
	case "uuid", "uuid4":
		return "invalid ID format"
	case "dive":
		return "invalid item"
	default:
		return "validation failed"
	}
}
