package task

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/phrazzld/scry-studio/internal/notify"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
	"github.com/phrazzld/scry-studio/internal/store"
	"go.opentelemetry.io/otel/metric"
)

// DefaultMaxConcurrentPerProject is used when Config leaves the bound unset.
const DefaultMaxConcurrentPerProject = 3

// Config holds orchestrator settings.
type Config struct {
	// MaxConcurrentPerProject bounds the running tasks of one project.
	MaxConcurrentPerProject int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{MaxConcurrentPerProject: DefaultMaxConcurrentPerProject}
}

// Dependencies are the collaborators of the Orchestrator.
type Dependencies struct {
	Generator generation.Generator
	Outputs   store.OutputStore
	Documents store.DocumentStore
	Sink      notify.Sink
	// MeterProvider is optional; the global provider is used when nil.
	MeterProvider metric.MeterProvider
}

// Orchestrator starts, tracks, bounds and cancels generation tasks.
type Orchestrator struct {
	generator generation.Generator
	outputs   store.OutputStore
	documents store.DocumentStore
	sink      notify.Sink
	registry  *Registry
	limiter   *ConcurrencyLimiter
	metrics   *metrics
	logger    *slog.Logger

	// mu guards closed and orders wg.Add against the wait in Shutdown.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config, deps Dependencies, logger *slog.Logger) (*Orchestrator, error) {
	if deps.Generator == nil {
		return nil, ErrNilGenerator
	}
	if deps.Outputs == nil {
		return nil, ErrNilOutputStore
	}
	if deps.Documents == nil {
		return nil, ErrNilDocumentStore
	}
	if deps.Sink == nil {
		return nil, ErrNilSink
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if cfg.MaxConcurrentPerProject == 0 {
		cfg.MaxConcurrentPerProject = DefaultMaxConcurrentPerProject
	}
	if cfg.MaxConcurrentPerProject < 0 {
		return nil, fmt.Errorf("%w: max concurrent per project must be positive, got %d",
			ErrInvalidConfig, cfg.MaxConcurrentPerProject)
	}

	m, err := newMetrics(deps.MeterProvider)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		generator: deps.Generator,
		outputs:   deps.Outputs,
		documents: deps.Documents,
		sink:      deps.Sink,
		registry:  NewRegistry(),
		limiter:   NewConcurrencyLimiter(cfg.MaxConcurrentPerProject),
		metrics:   m,
		logger:    logger.With("component", "orchestrator"),
	}, nil
}

// StartGenerationRequest asks for a new output built from project documents.
type StartGenerationRequest struct {
	ProjectID   uuid.UUID
	Kind        string
	DocumentIDs []uuid.UUID
	Title       string
	Options     generation.Options
}

// StartResult identifies a started task and the output it works on.
type StartResult struct {
	TaskID   uuid.UUID `json:"task_id"`
	OutputID uuid.UUID `json:"output_id"`
}

// job is one task together with the strategy it runs with.
type job struct {
	task *GenerationTask
	acc  Accumulator
	// prepare assembles the input and opens the event stream.
	prepare func(ctx context.Context) (iter.Seq2[generation.Event, error], error)
	// persist stores a result; nil when the task type persists nothing.
	persist func(ctx context.Context, res Result) error
	// fail records a failure on the output; nil when the output must not change.
	fail func(ctx context.Context, message string) error
}

// StartGeneration creates a generating output and starts a task filling it.
// It returns once the task is registered; the generation itself runs in the
// background.
func (o *Orchestrator) StartGeneration(ctx context.Context, req StartGenerationRequest) (StartResult, error) {
	if req.ProjectID == uuid.Nil {
		return StartResult{}, fmt.Errorf("%w: project ID is required", domain.ErrValidation)
	}
	kind, err := domain.ParseOutputKind(req.Kind)
	if err != nil {
		return StartResult{}, err
	}
	if o.isClosed() {
		return StartResult{}, ErrShuttingDown
	}

	output, err := domain.NewOutput(req.ProjectID, kind, req.DocumentIDs, req.Title)
	if err != nil {
		return StartResult{}, err
	}
	if err := o.outputs.Create(ctx, output); err != nil {
		return StartResult{}, fmt.Errorf("failed to create output: %w", err)
	}

	acc, err := newAccumulator(TaskTypeGenerate, kind, nil)
	if err != nil {
		return StartResult{}, err
	}

	t := newGenerationTask(TaskTypeGenerate, output.ProjectID, output.ID, kind, "")
	j := &job{
		task: t,
		acc:  acc,
		prepare: func(ctx context.Context) (iter.Seq2[generation.Event, error], error) {
			docs, err := o.loadDocuments(ctx, output.ProjectID, output.SourceDocumentIDs)
			if err != nil {
				return nil, err
			}
			in, err := generation.BuildInput(kind, output.Title, docs)
			if err != nil {
				if errors.Is(err, generation.ErrNoContent) {
					return nil, ErrNoContent
				}
				return nil, err
			}
			return o.generator.Generate(ctx, in, req.Options), nil
		},
		persist: func(ctx context.Context, res Result) error {
			title := res.Title
			if req.Title != "" {
				title = ""
			}
			updated := *output
			if err := updated.Complete(res.Data, title); err != nil {
				return err
			}
			if err := o.outputs.Update(ctx, &updated); err != nil {
				return fmt.Errorf("failed to save output: %w", err)
			}
			*output = updated
			return nil
		},
		fail: func(ctx context.Context, message string) error {
			if err := output.Fail(message); err != nil {
				return err
			}
			return o.outputs.Update(ctx, output)
		},
	}

	if err := o.launch(ctx, j); err != nil {
		if j.fail != nil {
			_ = j.fail(context.WithoutCancel(ctx), err.Error())
		}
		return StartResult{}, err
	}

	return StartResult{TaskID: t.ID, OutputID: output.ID}, nil
}

// CancelTask cancels a task of the project. It returns false, changing
// nothing, when the task is not registered or belongs to another project.
// It does not wait for the task to stop.
func (o *Orchestrator) CancelTask(ctx context.Context, projectID, taskID uuid.UUID) bool {
	if !o.registry.CancelForProject(projectID, taskID) {
		return false
	}
	logger.FromContextOrDefault(ctx, o.logger).Info("task cancelled",
		"task_id", taskID,
		"project_id", projectID)
	return true
}

// GetActiveTaskCount returns the number of queued and running tasks of the project.
func (o *Orchestrator) GetActiveTaskCount(projectID uuid.UUID) int {
	return o.registry.CountByProject(projectID)
}

// GetRunningTaskCount returns the number of tasks of the project that hold a
// concurrency slot. It never exceeds the configured bound.
func (o *Orchestrator) GetRunningTaskCount(projectID uuid.UUID) int {
	return o.registry.CountRunningByProject(projectID)
}

// Tasks returns the registered tasks of the project, oldest first.
func (o *Orchestrator) Tasks(projectID uuid.UUID) []Info {
	return o.registry.Snapshot(projectID)
}

// MaxConcurrentPerProject returns the configured per-project bound.
func (o *Orchestrator) MaxConcurrentPerProject() int {
	return o.limiter.Capacity()
}

// Shutdown cancels every task and waits until their goroutines exit or ctx
// is done. Tasks cannot be started afterwards.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	n := o.registry.CancelAll()
	o.logger.Info("shutting down orchestrator", "cancelled_tasks", n)

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("all generation tasks stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for generation tasks: %w", ctx.Err())
	}
}

func (o *Orchestrator) isClosed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.closed
}

// launch registers the task, announces it and starts its goroutine.
func (o *Orchestrator) launch(ctx context.Context, j *job) error {
	t := j.task

	log := logger.FromContextOrDefault(ctx, o.logger).With(
		"task_id", t.ID,
		"project_id", t.ProjectID,
		"output_id", t.OutputID,
		"task_type", t.Type,
	)
	// The task outlives the request that started it.
	taskCtx, cancel := context.WithCancel(logger.WithLogger(context.WithoutCancel(ctx), log))
	t.cancel = cancel

	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		cancel()
		return ErrShuttingDown
	}
	if err := o.registry.Add(t); err != nil {
		o.mu.RUnlock()
		cancel()
		return err
	}
	o.wg.Add(1)
	o.mu.RUnlock()

	log.Info("generation task started", "output_kind", t.OutputKind, "node_id", t.NodeID)
	o.metrics.taskStarted(taskCtx, t)

	if err := o.sink.NotifyStarted(taskCtx, t.info()); err != nil {
		log.Warn("failed to send started notification", "error", err)
	}

	go o.run(taskCtx, j)
	return nil
}

// run is the body of every task goroutine.
func (o *Orchestrator) run(ctx context.Context, j *job) {
	t := j.task
	log := logger.FromContextOrDefault(ctx, o.logger)

	var release func()
	outcome := failed(errors.New("task did not finish"))
	finishing := false

	defer func() {
		if r := recover(); r != nil {
			log.Error("generation task panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			if !finishing {
				outcome = failed(fmt.Errorf("panic: %v", r))
				o.finishRecovered(ctx, j, outcome)
			}
		}
		o.cleanup(ctx, t, release, outcome.Kind)
	}()

	outcome = o.execute(ctx, j, &release)
	finishing = true
	o.finish(ctx, j, outcome)
}

// finishRecovered is finish for a task that already panicked once; a second
// panic is logged and dropped so cleanup still runs.
func (o *Orchestrator) finishRecovered(ctx context.Context, j *job, outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContextOrDefault(ctx, o.logger).Error("failed to report panicked task", "panic", r)
		}
	}()
	o.finish(ctx, j, outcome)
}

// execute waits for a slot, streams the events and folds them.
func (o *Orchestrator) execute(ctx context.Context, j *job, release *func()) Outcome {
	t := j.task
	log := logger.FromContextOrDefault(ctx, o.logger)

	queuedAt := time.Now()
	rel, err := o.limiter.Acquire(ctx, t.ProjectID)
	if err != nil {
		return cancelled()
	}
	*release = rel
	o.metrics.slotAcquired(ctx, t, time.Since(queuedAt))

	if ctx.Err() != nil || !o.registry.MarkRunning(t.ID) {
		return cancelled()
	}
	log.Debug("generation task running", "queue_wait", time.Since(queuedAt))

	events, err := j.prepare(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		return failed(err)
	}

	info := t.info()
	count := 0
	for ev, err := range events {
		if ctx.Err() != nil || !o.registry.Contains(t.ID) {
			return cancelled()
		}
		if err != nil {
			return failed(err)
		}
		if err := o.sink.NotifyEvent(ctx, info, ev); err != nil {
			log.Warn("failed to forward generation event", "event_kind", ev.Kind, "error", err)
		}
		if err := j.acc.Add(ev); err != nil {
			return failed(err)
		}
		count++
	}

	if ctx.Err() != nil || !o.registry.Contains(t.ID) {
		return cancelled()
	}

	res, ok, err := j.acc.Result()
	if err != nil {
		return failed(err)
	}
	if !ok {
		log.Warn("generation stream ended without a result", "events", count)
		return incomplete()
	}

	if j.persist != nil {
		if err := j.persist(ctx, res); err != nil {
			if ctx.Err() != nil {
				return cancelled()
			}
			return failed(err)
		}
	}

	return completed(res)
}

// finish reports the terminal state of a task.
func (o *Orchestrator) finish(ctx context.Context, j *job, outcome Outcome) {
	t := j.task
	log := logger.FromContextOrDefault(ctx, o.logger)
	// Terminal notifications must go out even after cancellation.
	ctx = context.WithoutCancel(ctx)
	info := t.info()

	switch outcome.Kind {
	case OutcomeCompleted:
		log.Info("generation task completed", "summary", outcome.Result.Summary)
		if err := o.sink.NotifyComplete(ctx, info, outcome.Result.Summary); err != nil {
			log.Warn("failed to send complete notification", "error", err)
		}
	case OutcomeIncomplete:
		log.Info("generation task ended without a result")
	case OutcomeFailed:
		log.Error("generation task failed", "error", outcome.Err)
		if j.fail != nil {
			if err := j.fail(ctx, outcome.Err.Error()); err != nil {
				log.Error("failed to mark output as failed", "error", err)
			}
		}
		if err := o.sink.NotifyError(ctx, info, failureMessage(outcome.Err)); err != nil {
			log.Warn("failed to send error notification", "error", err)
		}
	case OutcomeCancelled:
		log.Info("generation task cancelled")
		if err := o.sink.NotifyError(ctx, info, errCancelled.Error()); err != nil {
			log.Warn("failed to send error notification", "error", err)
		}
	default:
		log.Error("unknown task outcome", "outcome", outcome.Kind)
	}
}

// cleanup runs exactly once per task, on every exit path.
func (o *Orchestrator) cleanup(ctx context.Context, t *GenerationTask, release func(), kind OutcomeKind) {
	log := logger.FromContextOrDefault(ctx, o.logger)
	ctx = context.WithoutCancel(ctx)
	defer func() {
		close(t.done)
		o.wg.Done()
	}()

	o.registry.Remove(t.ID)
	o.cleanupNotifications(ctx, t.ID)
	if release != nil {
		release()
		o.metrics.slotReleased(ctx, t)
	}
	o.metrics.taskFinished(ctx, t, kind)
	log.Debug("generation task cleaned up", "outcome", kind)
}

func (o *Orchestrator) cleanupNotifications(ctx context.Context, taskID uuid.UUID) {
	log := logger.FromContextOrDefault(ctx, o.logger)
	defer func() {
		if r := recover(); r != nil {
			log.Error("task notification cleanup panicked", "panic", r)
		}
	}()
	if err := o.sink.CleanupTask(ctx, taskID); err != nil {
		log.Warn("failed to clean up task notifications", "error", err)
	}
}

// loadDocuments fetches the documents of a project. Missing documents and
// documents of other projects are skipped.
func (o *Orchestrator) loadDocuments(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*domain.Document, error) {
	log := logger.FromContextOrDefault(ctx, o.logger)

	docs := make([]*domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := o.documents.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrDocumentNotFound) {
				log.Warn("skipping missing document", "document_id", id)
				continue
			}
			return nil, fmt.Errorf("failed to load document %s: %w", id, err)
		}
		if doc.ProjectID != projectID {
			log.Warn("skipping document of another project", "document_id", id)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// failureMessage returns the client-facing text for a failure. The output
// itself keeps the full error text.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, generation.ErrNoContent):
		return "the selected documents contain no text"
	case errors.Is(err, generation.ErrContentBlocked):
		return "the content was blocked by the model's safety filters"
	case errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, ErrInvalidEvent),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrValidation):
		return "the model returned an invalid response"
	default:
		return "generation failed"
	}
}
