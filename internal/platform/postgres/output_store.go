package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
	"github.com/phrazzld/scry-studio/internal/store"
)

// PostgresOutputStore implements store.OutputStore on PostgreSQL.
type PostgresOutputStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.OutputStore = (*PostgresOutputStore)(nil)

// NewPostgresOutputStore creates a new PostgreSQL implementation of the
// OutputStore interface. If logger is nil, the default logger is used.
func NewPostgresOutputStore(db *sql.DB, logger *slog.Logger) *PostgresOutputStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresOutputStore{
		db:     db,
		logger: logger.With(slog.String("component", "output_store")),
	}
}

const outputColumns = `id, project_id, kind, source_document_ids, status, title, data, error_message, created_at, updated_at`

// Create implements store.OutputStore.
func (s *PostgresOutputStore) Create(ctx context.Context, output *domain.Output) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := output.Validate(); err != nil {
		log.Warn("output validation failed during create",
			slog.String("error", err.Error()),
			slog.String("output_id", output.ID.String()))
		return err
	}

	docIDs, err := json.Marshal(output.SourceDocumentIDs)
	if err != nil {
		return fmt.Errorf("encode source document ids: %w", err)
	}

	query := `
		INSERT INTO outputs (` + outputColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		output.ID,
		output.ProjectID,
		string(output.Kind),
		docIDs,
		string(output.Status),
		output.Title,
		nullableJSON(output.Data),
		output.ErrorMessage,
		output.CreatedAt,
		output.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create output",
			slog.String("error", err.Error()),
			slog.String("output_id", output.ID.String()))
		return MapError(err)
	}

	log.Debug("output created",
		slog.String("output_id", output.ID.String()),
		slog.String("kind", string(output.Kind)))
	return nil
}

// GetByID implements store.OutputStore.
func (s *PostgresOutputStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Output, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + outputColumns + ` FROM outputs WHERE id = $1`
	output, err := scanOutput(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("output not found", slog.String("output_id", id.String()))
			return nil, store.ErrOutputNotFound
		}
		log.Error("failed to get output by ID",
			slog.String("error", err.Error()),
			slog.String("output_id", id.String()))
		return nil, MapError(err)
	}
	return output, nil
}

// Update implements store.OutputStore. The stored status is locked and
// checked in the same transaction as the write, so two writers cannot both
// finish the same output.
func (s *PostgresOutputStore) Update(ctx context.Context, output *domain.Output) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := output.Validate(); err != nil {
		return err
	}

	err := store.RunInTransaction(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM outputs WHERE id = $1 FOR UPDATE`, output.ID).Scan(&current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrOutputNotFound
			}
			return MapError(err)
		}

		if !statusChangeAllowed(domain.OutputStatus(current), output.Status) {
			return fmt.Errorf("%w: output %s is %s, cannot become %s",
				store.ErrUpdateFailed, output.ID, current, output.Status)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE outputs
			SET status = $1, title = $2, data = $3, error_message = $4, updated_at = $5
			WHERE id = $6
		`,
			string(output.Status),
			output.Title,
			nullableJSON(output.Data),
			output.ErrorMessage,
			output.UpdatedAt,
			output.ID,
		)
		if err != nil {
			return MapError(err)
		}
		return CheckRowsAffected(result, store.ErrOutputNotFound)
	})
	if err != nil {
		log.Warn("failed to update output",
			slog.String("error", err.Error()),
			slog.String("output_id", output.ID.String()),
			slog.String("status", string(output.Status)))
		return err
	}

	log.Debug("output updated",
		slog.String("output_id", output.ID.String()),
		slog.String("status", string(output.Status)))
	return nil
}

// ListByProject implements store.OutputStore.
func (s *PostgresOutputStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Output, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + outputColumns + ` FROM outputs WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		log.Error("failed to list outputs",
			slog.String("error", err.Error()),
			slog.String("project_id", projectID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	outputs := make([]*domain.Output, 0)
	for rows.Next() {
		output, err := scanOutput(rows)
		if err != nil {
			return nil, MapError(err)
		}
		outputs = append(outputs, output)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return outputs, nil
}

// FailAbandoned marks every output still generating as failed. Tasks do not
// survive a restart, so at startup such outputs can never complete.
func (s *PostgresOutputStore) FailAbandoned(ctx context.Context, message string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE outputs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE status = $4
	`,
		string(domain.OutputStatusError),
		message,
		time.Now().UTC(),
		string(domain.OutputStatusGenerating),
	)
	if err != nil {
		return 0, MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Warn("failed abandoned outputs", slog.Int64("count", n))
	}
	return n, nil
}

// statusChangeAllowed reports whether a stored status may be overwritten.
// A generating output may finish; a finished output keeps its status.
func statusChangeAllowed(from, to domain.OutputStatus) bool {
	return from == domain.OutputStatusGenerating || from == to
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutput(row rowScanner) (*domain.Output, error) {
	var (
		o      domain.Output
		kind   string
		status string
		docIDs []byte
		data   []byte
	)
	if err := row.Scan(
		&o.ID,
		&o.ProjectID,
		&kind,
		&docIDs,
		&status,
		&o.Title,
		&data,
		&o.ErrorMessage,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	o.Kind = domain.OutputKind(kind)
	o.Status = domain.OutputStatus(status)
	if len(docIDs) > 0 {
		if err := json.Unmarshal(docIDs, &o.SourceDocumentIDs); err != nil {
			return nil, fmt.Errorf("decode source document ids: %w", err)
		}
	}
	if len(data) > 0 {
		o.Data = json.RawMessage(data)
	}
	return &o, nil
}

func nullableJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
