package api

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOrchestrator is a hand-written Orchestrator for handler tests.
type fakeOrchestrator struct {
	StartGenerationFn   func(ctx context.Context, req task.StartGenerationRequest) (task.StartResult, error)
	StartExplainNodeFn  func(ctx context.Context, req task.ExplainNodeRequest) (task.StartResult, error)
	StartExpandNodeFn   func(ctx context.Context, req task.ExpandNodeRequest) (task.StartResult, error)
	ExplainNodeStreamFn func(ctx context.Context, req task.ExplainNodeRequest) (iter.Seq2[string, error], error)
	CancelTaskFn        func(ctx context.Context, projectID, taskID uuid.UUID) bool

	ActiveCount  int
	RunningCount int
	Max          int
	TaskInfos    []task.Info

	mu              sync.Mutex
	generationCalls []task.StartGenerationRequest
	nodeCalls       []task.ExplainNodeRequest
}

var _ Orchestrator = (*fakeOrchestrator)(nil)

func (f *fakeOrchestrator) StartGeneration(ctx context.Context, req task.StartGenerationRequest) (task.StartResult, error) {
	f.mu.Lock()
	f.generationCalls = append(f.generationCalls, req)
	f.mu.Unlock()
	if f.StartGenerationFn != nil {
		return f.StartGenerationFn(ctx, req)
	}
	return task.StartResult{TaskID: uuid.New(), OutputID: uuid.New()}, nil
}

func (f *fakeOrchestrator) StartExplainNode(ctx context.Context, req task.ExplainNodeRequest) (task.StartResult, error) {
	f.mu.Lock()
	f.nodeCalls = append(f.nodeCalls, req)
	f.mu.Unlock()
	if f.StartExplainNodeFn != nil {
		return f.StartExplainNodeFn(ctx, req)
	}
	return task.StartResult{TaskID: uuid.New(), OutputID: req.OutputID}, nil
}

func (f *fakeOrchestrator) StartExpandNode(ctx context.Context, req task.ExpandNodeRequest) (task.StartResult, error) {
	f.mu.Lock()
	f.nodeCalls = append(f.nodeCalls, task.ExplainNodeRequest(req))
	f.mu.Unlock()
	if f.StartExpandNodeFn != nil {
		return f.StartExpandNodeFn(ctx, req)
	}
	return task.StartResult{TaskID: uuid.New(), OutputID: req.OutputID}, nil
}

func (f *fakeOrchestrator) ExplainNodeStream(ctx context.Context, req task.ExplainNodeRequest) (iter.Seq2[string, error], error) {
	f.mu.Lock()
	f.nodeCalls = append(f.nodeCalls, req)
	f.mu.Unlock()
	if f.ExplainNodeStreamFn != nil {
		return f.ExplainNodeStreamFn(ctx, req)
	}
	return func(yield func(string, error) bool) {}, nil
}

func (f *fakeOrchestrator) CancelTask(ctx context.Context, projectID, taskID uuid.UUID) bool {
	if f.CancelTaskFn != nil {
		return f.CancelTaskFn(ctx, projectID, taskID)
	}
	return false
}

func (f *fakeOrchestrator) GetActiveTaskCount(projectID uuid.UUID) int  { return f.ActiveCount }
func (f *fakeOrchestrator) GetRunningTaskCount(projectID uuid.UUID) int { return f.RunningCount }
func (f *fakeOrchestrator) Tasks(projectID uuid.UUID) []task.Info      { return f.TaskInfos }
func (f *fakeOrchestrator) MaxConcurrentPerProject() int                { return f.Max }

func (f *fakeOrchestrator) lastGeneration() (task.StartGenerationRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.generationCalls) == 0 {
		return task.StartGenerationRequest{}, false
	}
	return f.generationCalls[len(f.generationCalls)-1], true
}

func (f *fakeOrchestrator) lastNodeRequest() (task.ExplainNodeRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.nodeCalls) == 0 {
		return task.ExplainNodeRequest{}, false
	}
	return f.nodeCalls[len(f.nodeCalls)-1], true
}

// testRouter mounts the handlers on the same paths the server uses,
// without authentication.
func testRouter(gen *GenerationHandler, docs *DocumentHandler, events *EventsHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/projects/{projectID}", func(r chi.Router) {
		if gen != nil {
			r.Post("/outputs", gen.StartGeneration)
			r.Get("/outputs", gen.ListOutputs)
			r.Get("/outputs/{outputID}", gen.GetOutput)
			r.Post("/outputs/{outputID}/nodes/{nodeID}/explain", gen.ExplainNode)
			r.Get("/outputs/{outputID}/nodes/{nodeID}/explain/stream", gen.StreamExplanation)
			r.Post("/outputs/{outputID}/nodes/{nodeID}/expand", gen.ExpandNode)
			r.Get("/tasks", gen.ListTasks)
			r.Delete("/tasks/{taskID}", gen.CancelTask)
		}
		if docs != nil {
			r.Post("/documents", docs.CreateDocument)
			r.Get("/documents", docs.ListDocuments)
		}
		if events != nil {
			r.Get("/events", events.Stream)
		}
	})
	return r
}
