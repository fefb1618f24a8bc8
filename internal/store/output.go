package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// OutputStore defines the interface for generated output persistence.
type OutputStore interface {
	// Create saves a new output. The output is validated first.
	Create(ctx context.Context, output *domain.Output) error

	// GetByID retrieves an output by its ID.
	// Returns ErrOutputNotFound if the output does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Output, error)

	// Update saves status, title, data and error message of an existing output.
	// Returns ErrOutputNotFound if the output does not exist and ErrUpdateFailed
	// if the stored status does not allow the change (a finished output is never
	// moved back to generating or to another terminal status).
	Update(ctx context.Context, output *domain.Output) error

	// ListByProject returns the outputs of a project, newest first.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Output, error)
}
