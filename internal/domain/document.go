package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document-specific validation errors
var (
	ErrEmptyDocumentID        = errors.New("document ID cannot be empty")
	ErrEmptyDocumentProjectID = errors.New("document project ID cannot be empty")
)

// Document is a source text uploaded to a project. Generations read the
// content of one or more documents.
type Document struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument creates a new Document for the given project.
func NewDocument(projectID uuid.UUID, title, content string) (*Document, error) {
	now := time.Now().UTC()
	doc := &Document{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks if the Document has valid data.
func (d *Document) Validate() error {
	if d.ID == uuid.Nil {
		return ErrEmptyDocumentID
	}
	if d.ProjectID == uuid.Nil {
		return ErrEmptyDocumentProjectID
	}
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}
