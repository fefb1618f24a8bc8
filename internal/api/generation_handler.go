package api

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/api/shared"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
	"github.com/phrazzld/scry-studio/internal/store"
	"github.com/phrazzld/scry-studio/internal/task"
)

// Orchestrator is the part of task.Orchestrator the handlers use.
type Orchestrator interface {
	StartGeneration(ctx context.Context, req task.StartGenerationRequest) (task.StartResult, error)
	StartExplainNode(ctx context.Context, req task.ExplainNodeRequest) (task.StartResult, error)
	StartExpandNode(ctx context.Context, req task.ExpandNodeRequest) (task.StartResult, error)
	ExplainNodeStream(ctx context.Context, req task.ExplainNodeRequest) (iter.Seq2[string, error], error)
	CancelTask(ctx context.Context, projectID, taskID uuid.UUID) bool
	GetActiveTaskCount(projectID uuid.UUID) int
	GetRunningTaskCount(projectID uuid.UUID) int
	Tasks(projectID uuid.UUID) []task.Info
	MaxConcurrentPerProject() int
}

var _ Orchestrator = (*task.Orchestrator)(nil)

// StartGenerationRequest is the body of POST /projects/{projectID}/outputs.
type StartGenerationRequest struct {
	Kind        string             `json:"kind"         validate:"required,oneof=mindmap summary flashcards"`
	DocumentIDs []uuid.UUID        `json:"document_ids" validate:"required,min=1,max=50"`
	Title       string             `json:"title"        validate:"max=200"`
	Options     generation.Options `json:"options"`
}

// NodeTaskRequest is the optional body of the explain and expand endpoints.
type NodeTaskRequest struct {
	Options generation.Options `json:"options"`
}

// TaskListResponse describes the tasks of a project.
type TaskListResponse struct {
	ActiveCount   int         `json:"active_count"`
	RunningCount  int         `json:"running_count"`
	MaxConcurrent int         `json:"max_concurrent"`
	Tasks         []task.Info `json:"tasks"`
}

// tokenEvent is the payload of an explanation stream event.
type tokenEvent struct {
	Token string `json:"token"`
}

// streamError is the payload of a failed explanation stream.
type streamError struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// GenerationHandler handles generation task HTTP requests
type GenerationHandler struct {
	orchestrator Orchestrator
	outputs      store.OutputStore
	logger       *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler
func NewGenerationHandler(
	orchestrator Orchestrator,
	outputs store.OutputStore,
	logger *slog.Logger,
) *GenerationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GenerationHandler")
	}

	return &GenerationHandler{
		orchestrator: orchestrator,
		outputs:      outputs,
		logger:       logger.With(slog.String("component", "generation_handler")),
	}
}

// StartGeneration handles POST /projects/{projectID}/outputs requests.
// It creates a generating output and returns 202 with the task and output IDs.
func (h *GenerationHandler) StartGeneration(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log)
	if !ok {
		return
	}

	var req StartGenerationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleAPIError(w, r, err, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.orchestrator.StartGeneration(r.Context(), task.StartGenerationRequest{
		ProjectID:   ids[0],
		Kind:        req.Kind,
		DocumentIDs: req.DocumentIDs,
		Title:       req.Title,
		Options:     req.Options,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start generation")
		return
	}

	log.Info("generation started",
		slog.String("task_id", result.TaskID.String()),
		slog.String("output_id", result.OutputID.String()),
		slog.String("kind", req.Kind))

	shared.RespondWithJSON(w, r, http.StatusAccepted, result)
}

// ExplainNode handles POST /projects/{projectID}/outputs/{outputID}/nodes/{nodeID}/explain.
// The explanation is streamed through the project event stream.
func (h *GenerationHandler) ExplainNode(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeNodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.orchestrator.StartExplainNode(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start explanation")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, result)
}

// ExpandNode handles POST /projects/{projectID}/outputs/{outputID}/nodes/{nodeID}/expand.
// New nodes are merged into the mind map when the task completes.
func (h *GenerationHandler) ExpandNode(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeNodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.orchestrator.StartExpandNode(r.Context(), task.ExpandNodeRequest(req))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start expansion")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, result)
}

// StreamExplanation handles GET .../nodes/{nodeID}/explain/stream. It writes
// the explanation as server-sent "token" events followed by "done", or an
// "error" event if generation fails after the stream started.
func (h *GenerationHandler) StreamExplanation(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log, OutputIDParam)
	if !ok {
		return
	}

	opts := generation.Options{
		Language: r.URL.Query().Get("language"),
	}
	if err := shared.ValidateRequest(&opts); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tokens, err := h.orchestrator.ExplainNodeStream(r.Context(), task.ExplainNodeRequest{
		ProjectID: ids[0],
		OutputID:  ids[1],
		NodeID:    chi.URLParam(r, NodeIDParam),
		Options:   opts,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start explanation")
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		HandleAPIError(w, r, err, "Streaming is not supported")
		return
	}

	count := 0
	for token, err := range tokens {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Debug("explanation stream closed by client")
				return
			}
			log.Error("explanation stream failed", "error", err)
			_ = sse.Event("error", streamError{
				Error:   "Explanation failed",
				TraceID: shared.GetTraceID(r.Context()),
			})
			return
		}
		if err := sse.Event("token", tokenEvent{Token: token}); err != nil {
			log.Debug("failed to write explanation token", "error", err)
			return
		}
		count++
	}

	log.Debug("explanation stream finished", slog.Int("tokens", count))
	_ = sse.Event("done", struct{}{})
}

// CancelTask handles DELETE /projects/{projectID}/tasks/{taskID} requests.
func (h *GenerationHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log, TaskIDParam)
	if !ok {
		return
	}

	if !h.orchestrator.CancelTask(r.Context(), ids[0], ids[1]) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	log.Info("task cancelled", slog.String("task_id", ids[1].String()))
	w.WriteHeader(http.StatusNoContent)
}

// ListTasks handles GET /projects/{projectID}/tasks requests.
func (h *GenerationHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log)
	if !ok {
		return
	}
	projectID := ids[0]

	tasks := h.orchestrator.Tasks(projectID)
	if tasks == nil {
		tasks = []task.Info{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		ActiveCount:   h.orchestrator.GetActiveTaskCount(projectID),
		RunningCount:  h.orchestrator.GetRunningTaskCount(projectID),
		MaxConcurrent: h.orchestrator.MaxConcurrentPerProject(),
		Tasks:         tasks,
	})
}

// GetOutput handles GET /projects/{projectID}/outputs/{outputID} requests.
func (h *GenerationHandler) GetOutput(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log, OutputIDParam)
	if !ok {
		return
	}

	output, err := h.outputs.GetByID(r.Context(), ids[1])
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get output")
		return
	}
	// Outputs of other projects are reported as missing.
	if output.ProjectID != ids[0] {
		HandleAPIError(w, r, store.ErrOutputNotFound, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, output)
}

// ListOutputs handles GET /projects/{projectID}/outputs requests.
func (h *GenerationHandler) ListOutputs(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log)
	if !ok {
		return
	}

	outputs, err := h.outputs.ListByProject(r.Context(), ids[0])
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list outputs")
		return
	}
	if outputs == nil {
		outputs = []*domain.Output{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, outputs)
}

func (h *GenerationHandler) decodeNodeRequest(w http.ResponseWriter, r *http.Request) (task.ExplainNodeRequest, bool) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log, OutputIDParam)
	if !ok {
		return task.ExplainNodeRequest{}, false
	}

	var body NodeTaskRequest
	if r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &body); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
			HandleAPIError(w, r, err, "Invalid request format")
			return task.ExplainNodeRequest{}, false
		}
	}
	if err := shared.ValidateRequest(&body); err != nil {
		HandleAPIError(w, r, err, "")
		return task.ExplainNodeRequest{}, false
	}

	return task.ExplainNodeRequest{
		ProjectID: ids[0],
		OutputID:  ids[1],
		NodeID:    chi.URLParam(r, NodeIDParam),
		Options:   body.Options,
	}, true
}
