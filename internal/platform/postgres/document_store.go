package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
	"github.com/phrazzld/scry-studio/internal/store"
)

// PostgresDocumentStore implements store.DocumentStore on PostgreSQL.
type PostgresDocumentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.DocumentStore = (*PostgresDocumentStore)(nil)

// NewPostgresDocumentStore creates a new PostgreSQL implementation of the
// DocumentStore interface. It works with a connection or a transaction.
func NewPostgresDocumentStore(db store.DBTX, logger *slog.Logger) *PostgresDocumentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDocumentStore{
		db:     db,
		logger: logger.With(slog.String("component", "document_store")),
	}
}

// Create implements store.DocumentStore.
func (s *PostgresDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := doc.Validate(); err != nil {
		log.Warn("document validation failed during create",
			slog.String("error", err.Error()),
			slog.String("document_id", doc.ID.String()))
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, doc.ID, doc.ProjectID, doc.Title, doc.Content, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		log.Error("failed to create document",
			slog.String("error", err.Error()),
			slog.String("document_id", doc.ID.String()))
		return MapError(err)
	}

	log.Debug("document created",
		slog.String("document_id", doc.ID.String()),
		slog.Int("content_length", len(doc.Content)))
	return nil
}

// GetByID implements store.DocumentStore.
func (s *PostgresDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var doc domain.Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, content, created_at, updated_at
		FROM documents
		WHERE id = $1
	`, id).Scan(&doc.ID, &doc.ProjectID, &doc.Title, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("document not found", slog.String("document_id", id.String()))
			return nil, store.ErrDocumentNotFound
		}
		log.Error("failed to get document by ID",
			slog.String("error", err.Error()),
			slog.String("document_id", id.String()))
		return nil, MapError(err)
	}
	return &doc, nil
}

// ListByProject implements store.DocumentStore.
func (s *PostgresDocumentStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, content, created_at, updated_at
		FROM documents
		WHERE project_id = $1
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.ProjectID, &doc.Title, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, MapError(err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return docs, nil
}
