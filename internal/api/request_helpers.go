package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/api/middleware"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// Route parameter names
const (
	OutputIDParam = "outputID"
	NodeIDParam   = "nodeID"
	TaskIDParam   = "taskID"
)

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, paramName)
	}

	return id, nil
}

// handlePathUUIDs extracts the project ID and the named UUID parameters.
// It writes an error response and returns false if any is missing or invalid.
func handlePathUUIDs(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
	paramNames ...string,
) ([]uuid.UUID, bool) {
	names := append([]string{middleware.ProjectIDParam}, paramNames...)
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id, err := getPathUUID(r, name)
		if err != nil {
			log.Warn("invalid path parameter",
				slog.String("param_name", name),
				slog.String("value", chi.URLParam(r, name)))
			HandleAPIError(w, r, err, "")
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
