package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// DocumentStore defines the interface for source document persistence.
type DocumentStore interface {
	// Create saves a new document. The document is validated first.
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document by its ID.
	// Returns ErrDocumentNotFound if the document does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// ListByProject returns the documents of a project, oldest first.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Document, error)
}
