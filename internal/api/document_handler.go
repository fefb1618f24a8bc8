package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-studio/internal/api/shared"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
	"github.com/phrazzld/scry-studio/internal/store"
)

// CreateDocumentRequest is the body of POST /projects/{projectID}/documents.
type CreateDocumentRequest struct {
	Title   string `json:"title"   validate:"max=200"`
	Content string `json:"content" validate:"required,max=1000000"`
}

// DocumentHandler handles source document HTTP requests
type DocumentHandler struct {
	documents store.DocumentStore
	logger    *slog.Logger
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents store.DocumentStore, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for DocumentHandler")
	}

	return &DocumentHandler{
		documents: documents,
		logger:    logger.With(slog.String("component", "document_handler")),
	}
}

// CreateDocument handles POST /projects/{projectID}/documents requests.
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log)
	if !ok {
		return
	}

	var req CreateDocumentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	doc, err := domain.NewDocument(ids[0], req.Title, req.Content)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := h.documents.Create(r.Context(), doc); err != nil {
		HandleAPIError(w, r, err, "Failed to create document")
		return
	}

	log.Info("document created",
		slog.String("document_id", doc.ID.String()),
		slog.Int("content_length", len(doc.Content)))

	shared.RespondWithJSON(w, r, http.StatusCreated, doc)
}

// ListDocuments handles GET /projects/{projectID}/documents requests.
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log)
	if !ok {
		return
	}

	docs, err := h.documents.ListByProject(r.Context(), ids[0])
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, docs)
}
