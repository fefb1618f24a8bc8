package task

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/phrazzld/scry-studio/internal/mocks"
	"github.com/phrazzld/scry-studio/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	orch      *Orchestrator
	gen       *mocks.MockGenerator
	outputs   *mocks.MockOutputStore
	docs      *mocks.MockDocumentStore
	sink      *mocks.RecordingSink
	projectID uuid.UUID
	doc       *domain.Document
}

func newFixture(t *testing.T, gen *mocks.MockGenerator, maxConcurrent int) *fixture {
	t.Helper()

	projectID := uuid.New()
	doc, err := domain.NewDocument(projectID, "Biology notes", "Photosynthesis turns light into chemical energy.")
	require.NoError(t, err)

	f := &fixture{
		gen:       gen,
		outputs:   mocks.NewMockOutputStore(),
		docs:      mocks.NewMockDocumentStore(doc),
		sink:      mocks.NewRecordingSink(),
		projectID: projectID,
		doc:       doc,
	}

	f.orch, err = NewOrchestrator(
		Config{MaxConcurrentPerProject: maxConcurrent},
		Dependencies{
			Generator: f.gen,
			Outputs:   f.outputs,
			Documents: f.docs,
			Sink:      f.sink,
		},
		testLogger(),
	)
	require.NoError(t, err)
	return f
}

func (f *fixture) start(t *testing.T, kind domain.OutputKind) StartResult {
	t.Helper()
	res, err := f.orch.StartGeneration(context.Background(), StartGenerationRequest{
		ProjectID:   f.projectID,
		Kind:        string(kind),
		DocumentIDs: []uuid.UUID{f.doc.ID},
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) output(t *testing.T, id uuid.UUID) *domain.Output {
	t.Helper()
	o, ok := f.outputs.Get(id)
	require.True(t, ok, "output %s not stored", id)
	return o
}

// waitIdle waits until every task goroutine has exited.
func waitIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("generation tasks did not finish")
	}
}

// gate is a generator body that blocks every call until released.
type gate struct {
	entered  chan int
	releases []chan struct{}
	calls    atomic.Int32
	inside   atomic.Int32
	maxIn    atomic.Int32
	events   []generation.Event
}

func newGate(n int, events ...generation.Event) *gate {
	g := &gate{entered: make(chan int, n), events: events}
	for i := 0; i < n; i++ {
		g.releases = append(g.releases, make(chan struct{}))
	}
	return g
}

func (g *gate) seq(ctx context.Context) iter.Seq2[generation.Event, error] {
	return func(yield func(generation.Event, error) bool) {
		i := int(g.calls.Add(1)) - 1
		n := g.inside.Add(1)
		for {
			m := g.maxIn.Load()
			if n <= m || g.maxIn.CompareAndSwap(m, n) {
				break
			}
		}
		g.entered <- i

		<-g.releases[i]
		g.inside.Add(-1)

		for _, ev := range g.events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (g *gate) release(i int) {
	close(g.releases[i])
}

func mindMapEvents() []generation.Event {
	return []generation.Event{
		generation.NodeEvent(domain.Node{ID: "root", Label: "Photosynthesis"}),
		generation.NodeEvent(domain.Node{ID: "light", Label: "Light reactions", ParentID: "root", Level: 1}),
		generation.EdgeEvent(domain.Edge{Source: "root", Target: "light"}),
	}
}

func TestNewOrchestrator(t *testing.T) {
	t.Parallel()

	valid := Dependencies{
		Generator: &mocks.MockGenerator{},
		Outputs:   mocks.NewMockOutputStore(),
		Documents: mocks.NewMockDocumentStore(),
		Sink:      mocks.NewRecordingSink(),
	}

	tests := []struct {
		name    string
		cfg     Config
		mutate  func(d *Dependencies)
		logger  *slog.Logger
		wantErr error
	}{
		{name: "nil generator", mutate: func(d *Dependencies) { d.Generator = nil }, logger: testLogger(), wantErr: ErrNilGenerator},
		{name: "nil outputs", mutate: func(d *Dependencies) { d.Outputs = nil }, logger: testLogger(), wantErr: ErrNilOutputStore},
		{name: "nil documents", mutate: func(d *Dependencies) { d.Documents = nil }, logger: testLogger(), wantErr: ErrNilDocumentStore},
		{name: "nil sink", mutate: func(d *Dependencies) { d.Sink = nil }, logger: testLogger(), wantErr: ErrNilSink},
		{name: "nil logger", wantErr: ErrNilLogger},
		{name: "negative bound", cfg: Config{MaxConcurrentPerProject: -1}, logger: testLogger(), wantErr: ErrInvalidConfig},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := valid
			if tc.mutate != nil {
				tc.mutate(&deps)
			}
			_, err := NewOrchestrator(tc.cfg, deps, tc.logger)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	t.Run("default bound", func(t *testing.T) {
		o, err := NewOrchestrator(Config{}, valid, testLogger())
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxConcurrentPerProject, o.MaxConcurrentPerProject())
	})
}

func TestStartGeneration_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &mocks.MockGenerator{}, 2)

	_, err := f.orch.StartGeneration(context.Background(), StartGenerationRequest{Kind: "mindmap"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.orch.StartGeneration(context.Background(), StartGenerationRequest{ProjectID: f.projectID, Kind: "poem"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrInvalidOutputKind)

	assert.Equal(t, 0, f.orch.registry.Len(), "nothing registered")
	outputs, err := f.outputs.ListByProject(context.Background(), f.projectID)
	require.NoError(t, err)
	assert.Empty(t, outputs, "no output created")
	assert.Empty(t, f.sink.Calls())
}

func TestStartGeneration_CreateOutputFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &mocks.MockGenerator{}, 2)
	dbErr := errors.New("connection refused")
	f.outputs.CreateFn = func(context.Context, *domain.Output) error { return dbErr }

	_, err := f.orch.StartGeneration(context.Background(), StartGenerationRequest{
		ProjectID: f.projectID,
		Kind:      "summary",
	})
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, 0, f.orch.GetActiveTaskCount(f.projectID))
	assert.Equal(t, 0, f.gen.GenerateCallCount())
}

func TestStartGeneration_MindMap(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mocks.NewMockGeneratorWithEvents(mindMapEvents()...), 2)
	res := f.start(t, domain.OutputKindMindMap)
	assert.NotEqual(t, uuid.Nil, res.TaskID)
	waitIdle(t, f.orch)

	out := f.output(t, res.OutputID)
	assert.Equal(t, domain.OutputStatusComplete, out.Status)
	m, err := out.MindMap()
	require.NoError(t, err)
	assert.Len(t, m.Nodes, 2)
	assert.Len(t, m.Edges, 1)

	assert.Equal(t,
		[]string{"started", "event", "event", "event", "complete", "cleanup"},
		f.sink.Methods(res.TaskID))
	calls := f.sink.CallsFor(res.TaskID)
	assert.Equal(t, "2 nodes, 1 edges", calls[4].Message)
	assert.Equal(t, res.OutputID, calls[0].Task.OutputID)

	in, ok := f.gen.LastInput()
	require.True(t, ok)
	assert.Contains(t, in.Text, "Photosynthesis turns light")

	assert.Equal(t, 0, f.orch.GetActiveTaskCount(f.projectID))
	assert.False(t, f.orch.CancelTask(context.Background(), f.projectID, res.TaskID))
	assert.Equal(t, 0, f.orch.limiter.InUse(f.projectID), "slot released")
}

func TestStartGeneration_GraphFoldIsDeterministic(t *testing.T) {
	t.Parallel()

	events := []generation.Event{
		generation.NodeEvent(domain.Node{ID: "root", Label: "Cells"}),
		generation.NodeEvent(domain.Node{ID: "a", Label: "Nucleus", ParentID: "root", Level: 1}),
		generation.EdgeEvent(domain.Edge{Source: "root", Target: "a"}),
		generation.NodeEvent(domain.Node{ID: "b", Label: "Membrane", ParentID: "root", Level: 1}),
		generation.NodeEvent(domain.Node{ID: "a", Label: "Nucleus!", ParentID: "root", Level: 1}),
		generation.EdgeEvent(domain.Edge{Source: "root", Target: "b"}),
		generation.EdgeEvent(domain.Edge{Source: "root", Target: "a", Label: "holds"}),
	}

	want := &domain.MindMap{}
	for _, ev := range events {
		require.NoError(t, addGraphEvent(want, ev))
	}

	for i := 0; i < 3; i++ {
		f := newFixture(t, mocks.NewMockGeneratorWithEvents(events...), 1)
		res := f.start(t, domain.OutputKindMindMap)
		waitIdle(t, f.orch)

		out := f.output(t, res.OutputID)
		require.Equal(t, domain.OutputStatusComplete, out.Status)
		assert.JSONEq(t, string(mustJSON(t, want)), string(out.Data))
	}
}

func TestStartGeneration_Summary(t *testing.T) {
	t.Parallel()

	summary := domain.Summary{
		Title:       "Light and life",
		Overview:    "Plants capture light.",
		KeyFindings: []string{"Chlorophyll absorbs light", "Oxygen is a by-product"},
	}
	gen := mocks.NewMockGeneratorWithEvents(
		generation.TokenEvent(`{"title":`),
		generation.TokenEvent(`...}`),
		generation.CompleteEvent(mustJSON(t, summary)),
	)
	f := newFixture(t, gen, 2)

	res := f.start(t, domain.OutputKindSummary)
	waitIdle(t, f.orch)

	out := f.output(t, res.OutputID)
	assert.Equal(t, domain.OutputStatusComplete, out.Status)
	assert.Equal(t, "Light and life", out.Title, "model title replaces the default")

	calls := f.sink.CallsFor(res.TaskID)
	require.Len(t, calls, 6)
	assert.Equal(t, "complete", calls[4].Method)
	assert.Equal(t, "2 key findings", calls[4].Message)
}

func TestStartGeneration_KeepsRequestedTitle(t *testing.T) {
	t.Parallel()

	deck := domain.FlashcardDeck{Title: "Model title", Cards: []domain.Flashcard{{Front: "Q", Back: "A"}}}
	f := newFixture(t, mocks.NewMockGeneratorWithEvents(generation.CompleteEvent(mustJSON(t, deck))), 2)

	res, err := f.orch.StartGeneration(context.Background(), StartGenerationRequest{
		ProjectID:   f.projectID,
		Kind:        "FLASHCARDS",
		DocumentIDs: []uuid.UUID{f.doc.ID},
		Title:       "Exam prep",
	})
	require.NoError(t, err)
	waitIdle(t, f.orch)

	out := f.output(t, res.OutputID)
	assert.Equal(t, domain.OutputStatusComplete, out.Status)
	assert.Equal(t, "Exam prep", out.Title)
	assert.Equal(t, domain.OutputKindFlashcards, out.Kind)
}

func TestStartGeneration_SnapshotWithoutCompletion(t *testing.T) {
	t.Parallel()

	gen := mocks.NewMockGeneratorWithEvents(
		generation.TokenEvent("The summary"),
		generation.TokenEvent(" never finishes"),
	)
	f := newFixture(t, gen, 2)

	res := f.start(t, domain.OutputKindSummary)
	waitIdle(t, f.orch)

	out := f.output(t, res.OutputID)
	assert.Equal(t, domain.OutputStatusGenerating, out.Status, "no result, no status change")
	assert.Empty(t, f.outputs.Updates())
	assert.Equal(t, []string{"started", "event", "event", "cleanup"}, f.sink.Methods(res.TaskID))
	assert.Equal(t, 0, f.orch.GetActiveTaskCount(f.projectID))
}

func TestStartGeneration_GeneratorError(t *testing.T) {
	t.Parallel()

	gen := &mocks.MockGenerator{
		Events: []generation.Event{generation.TokenEvent("partial")},
		Err:    generation.ErrContentBlocked,
	}
	f := newFixture(t, gen, 2)

	res := f.start(t, domain.OutputKindFlashcards)
	waitIdle(t, f.orch)

	out := f.output(t, res.OutputID)
	assert.Equal(t, domain.OutputStatusError, out.Status)
	assert.Equal(t, generation.ErrContentBlocked.Error(), out.ErrorMessage)

	calls := f.sink.CallsFor(res.TaskID)
	assert.Equal(t, []string{"started", "event", "error", "cleanup"}, f.sink.Methods(res.TaskID))
	assert.Equal(t, "the content was blocked by the model's safety filters", calls[2].Message)
}

func TestStartGeneration_PersistsFailureText(t *testing.T) {
	t.Parallel()

	gen := &mocks.MockGenerator{Err: errors.New("upstream 429 rate limited")}
	f := newFixture(t, gen, 2)

	res := f.start(t, domain.OutputKindMindMap)
	waitIdle(t, f.orch)

	out := f.output(t, res.OutputID)
	assert.Equal(t, domain.OutputStatusError, out.Status)
	assert.Contains(t, out.ErrorMessage, "upstream 429 rate limited")

	calls := f.sink.CallsFor(res.TaskID)
	require.Equal(t, []string{"started", "error", "cleanup"}, f.sink.Methods(res.TaskID))
	assert.Equal(t, "generation failed", calls[1].Message, "clients get the generic text")
}

func TestStartGeneration_MindMapWithoutNodes(t *testing.T) {
	t.Parallel()

	gen := mocks.NewMockGeneratorWithEvents(generation.TokenEvent("thinking"))
	f := newFixture(t, gen, 2)

	res := f.start(t, domain.OutputKindMindMap)
	waitIdle(t, f.orch)

	out := f.output(t, res.OutputID)
	assert.Equal(t, domain.OutputStatusComplete, out.Status)
	mm, err := out.MindMap()
	require.NoError(t, err)
	assert.Empty(t, mm.Nodes)

	calls := f.sink.CallsFor(res.TaskID)
	require.Equal(t, []string{"started", "event", "complete", "cleanup"}, f.sink.Methods(res.TaskID))
	assert.Equal(t, "0 nodes, 0 edges", calls[2].Message)
}

func TestStartGeneration_NoContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mocks.NewMockGeneratorWithEvents(mindMapEvents()...), 2)

	res, err := f.orch.StartGeneration(context.Background(), StartGenerationRequest{
		ProjectID: f.projectID,
		Kind:      "mindmap",
	})
	require.NoError(t, err, "empty document list fails asynchronously")
	waitIdle(t, f.orch)

	out := f.output(t, res.OutputID)
	assert.Equal(t, domain.OutputStatusError, out.Status)
	assert.Contains(t, out.ErrorMessage, generation.ErrNoContent.Error())
	assert.Equal(t, 0, f.gen.GenerateCallCount())

	calls := f.sink.CallsFor(res.TaskID)
	require.Equal(t, []string{"started", "error", "cleanup"}, f.sink.Methods(res.TaskID))
	assert.Equal(t, "the selected documents contain no text", calls[1].Message)
}

func TestStartGeneration_SkipsMissingDocuments(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mocks.NewMockGeneratorWithEvents(mindMapEvents()...), 2)
	foreign, err := domain.NewDocument(uuid.New(), "Other", "Someone else's notes")
	require.NoError(t, err)
	require.NoError(t, f.docs.Create(context.Background(), foreign))

	res, err := f.orch.StartGeneration(context.Background(), StartGenerationRequest{
		ProjectID:   f.projectID,
		Kind:        "mindmap",
		DocumentIDs: []uuid.UUID{uuid.New(), foreign.ID, f.doc.ID},
	})
	require.NoError(t, err)
	waitIdle(t, f.orch)

	assert.Equal(t, domain.OutputStatusComplete, f.output(t, res.OutputID).Status)
	in, ok := f.gen.LastInput()
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{f.doc.ID}, in.DocumentIDs)
	assert.NotContains(t, in.Text, "Someone else's notes")
}

func TestStartGeneration_SinkFailuresDoNotChangeOutcome(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mocks.NewMockGeneratorWithEvents(mindMapEvents()...), 2)
	f.sink.Err = errors.New("redis unavailable")

	res := f.start(t, domain.OutputKindMindMap)
	waitIdle(t, f.orch)

	assert.Equal(t, domain.OutputStatusComplete, f.output(t, res.OutputID).Status)
	assert.Equal(t, 1, f.sink.Count(res.TaskID, "cleanup"))
}

func TestStartGeneration_PersistFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mocks.NewMockGeneratorWithEvents(mindMapEvents()...), 2)
	var updates atomic.Int32
	f.outputs.UpdateFn = func(ctx context.Context, o *domain.Output) error {
		updates.Add(1)
		return errors.New("disk full")
	}

	res := f.start(t, domain.OutputKindMindMap)
	waitIdle(t, f.orch)

	assert.Equal(t, int32(2), updates.Load(), "complete attempt, then best-effort failure")
	assert.Equal(t, []string{"started", "event", "event", "event", "error", "cleanup"}, f.sink.Methods(res.TaskID))
}

func TestCancelTask_BeforeFirstEvent(t *testing.T) {
	t.Parallel()

	g := newGate(1, mindMapEvents()...)
	gen := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, _ generation.Input, _ generation.Options) iter.Seq2[generation.Event, error] {
			return g.seq(ctx)
		},
	}
	f := newFixture(t, gen, 2)

	res := f.start(t, domain.OutputKindMindMap)
	select {
	case <-g.entered:
	case <-time.After(waitTimeout):
		t.Fatal("generator was not entered")
	}
	assert.Equal(t, 1, f.orch.GetActiveTaskCount(f.projectID))
	assert.Equal(t, 1, f.orch.GetRunningTaskCount(f.projectID))

	assert.True(t, f.orch.CancelTask(context.Background(), f.projectID, res.TaskID))
	assert.Equal(t, 0, f.orch.GetActiveTaskCount(f.projectID), "removed immediately")
	assert.False(t, f.orch.CancelTask(context.Background(), f.projectID, res.TaskID))

	g.release(0)
	waitIdle(t, f.orch)

	assert.Equal(t, 0, f.orch.GetActiveTaskCount(f.projectID))
	assert.Equal(t, []string{"started", "error", "cleanup"}, f.sink.Methods(res.TaskID))
	assert.Equal(t, "generation cancelled", f.sink.CallsFor(res.TaskID)[1].Message)
	assert.Equal(t, domain.OutputStatusGenerating, f.output(t, res.OutputID).Status, "cancelled tasks never persist")
	assert.Empty(t, f.outputs.Updates())
}

func TestCancelTask_MidStreamDiscardsGraph(t *testing.T) {
	t.Parallel()

	events := mindMapEvents()
	f := newFixture(t, mocks.NewMockGeneratorWithEvents(events...), 2)

	var taskID atomic.Value
	var once sync.Once
	f.sink.OnEvent = func(task notify.Task, _ generation.Event) {
		once.Do(func() {
			taskID.Store(task.ID)
			f.orch.CancelTask(context.Background(), task.ProjectID, task.ID)
		})
	}

	res := f.start(t, domain.OutputKindMindMap)
	waitIdle(t, f.orch)

	assert.Equal(t, res.TaskID, taskID.Load())
	assert.Equal(t, 1, f.sink.Count(res.TaskID, "event"), "no event forwarded after cancellation")
	assert.Equal(t, 0, f.sink.Count(res.TaskID, "complete"))
	assert.Equal(t, domain.OutputStatusGenerating, f.output(t, res.OutputID).Status)
}

func TestCancelTask_OtherProjectOrUnknown(t *testing.T) {
	t.Parallel()

	g := newGate(1, mindMapEvents()...)
	gen := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, _ generation.Input, _ generation.Options) iter.Seq2[generation.Event, error] {
			return g.seq(ctx)
		},
	}
	f := newFixture(t, gen, 2)
	res := f.start(t, domain.OutputKindMindMap)
	<-g.entered

	assert.False(t, f.orch.CancelTask(context.Background(), uuid.New(), res.TaskID), "other project")
	assert.False(t, f.orch.CancelTask(context.Background(), f.projectID, uuid.New()), "unknown task")
	assert.Equal(t, 1, f.orch.GetActiveTaskCount(f.projectID), "no state change")

	g.release(0)
	waitIdle(t, f.orch)
	assert.Equal(t, domain.OutputStatusComplete, f.output(t, res.OutputID).Status)
}

func TestConcurrencyBound(t *testing.T) {
	t.Parallel()

	g := newGate(3, mindMapEvents()...)
	gen := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, _ generation.Input, _ generation.Options) iter.Seq2[generation.Event, error] {
			return g.seq(ctx)
		},
	}
	f := newFixture(t, gen, 2)

	var results []StartResult
	for i := 0; i < 3; i++ {
		results = append(results, f.start(t, domain.OutputKindMindMap))
	}

	for i := 0; i < 2; i++ {
		select {
		case <-g.entered:
		case <-time.After(waitTimeout):
			t.Fatal("expected two tasks to enter the generator")
		}
	}

	select {
	case i := <-g.entered:
		t.Fatalf("call %d entered while two tasks were running", i)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 3, f.orch.GetActiveTaskCount(f.projectID))
	assert.Equal(t, 2, f.orch.GetRunningTaskCount(f.projectID))
	assert.Equal(t, 2, f.orch.limiter.InUse(f.projectID))

	// Another project is not affected by this one's bound.
	other := newFixture(t, mocks.NewMockGeneratorWithEvents(mindMapEvents()...), 2)
	other.start(t, domain.OutputKindMindMap)
	waitIdle(t, other.orch)

	g.release(0)
	select {
	case i := <-g.entered:
		assert.Equal(t, 2, i)
	case <-time.After(waitTimeout):
		t.Fatal("third task did not start after a slot was released")
	}

	g.release(1)
	g.release(2)
	waitIdle(t, f.orch)

	assert.LessOrEqual(t, g.maxIn.Load(), int32(2))
	for _, r := range results {
		assert.Equal(t, domain.OutputStatusComplete, f.output(t, r.OutputID).Status)
	}
	assert.Equal(t, 0, f.orch.GetActiveTaskCount(f.projectID))
}

func TestStartGeneration_UniqueTaskIDs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mocks.NewMockGeneratorWithEvents(mindMapEvents()...), 4)

	const n = 40
	var mu sync.Mutex
	taskIDs := make(map[uuid.UUID]struct{})
	outputIDs := make(map[uuid.UUID]struct{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.orch.StartGeneration(context.Background(), StartGenerationRequest{
				ProjectID:   f.projectID,
				Kind:        "mindmap",
				DocumentIDs: []uuid.UUID{f.doc.ID},
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			taskIDs[res.TaskID] = struct{}{}
			outputIDs[res.OutputID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	waitIdle(t, f.orch)

	assert.Len(t, taskIDs, n)
	assert.Len(t, outputIDs, n)
	assert.Equal(t, 0, f.orch.GetActiveTaskCount(f.projectID))
}

func TestRun_PanicStillCleansUp(t *testing.T) {
	t.Parallel()

	gen := &mocks.MockGenerator{
		GenerateFn: func(context.Context, generation.Input, generation.Options) iter.Seq2[generation.Event, error] {
			return func(yield func(generation.Event, error) bool) {
				panic("backend exploded")
			}
		},
	}
	f := newFixture(t, gen, 1)

	res := f.start(t, domain.OutputKindSummary)
	waitIdle(t, f.orch)

	out := f.output(t, res.OutputID)
	assert.Equal(t, domain.OutputStatusError, out.Status)
	assert.Contains(t, out.ErrorMessage, "backend exploded")
	assert.Equal(t, []string{"started", "error", "cleanup"}, f.sink.Methods(res.TaskID))

	assert.Equal(t, 0, f.orch.GetActiveTaskCount(f.projectID))
	assert.Equal(t, 0, f.orch.limiter.InUse(f.projectID))

	// The slot was released, so the next task can run.
	f.gen.GenerateFn = nil
	f.gen.Events = mindMapEvents()
	next := f.start(t, domain.OutputKindMindMap)
	waitIdle(t, f.orch)
	assert.Equal(t, domain.OutputStatusComplete, f.output(t, next.OutputID).Status)
}

func TestRun_SinkCleanupPanicStillReleases(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mocks.NewMockGeneratorWithEvents(mindMapEvents()...), 1)
	f.sink.OnCleanup = func(uuid.UUID) {
		panic("sink cleanup exploded")
	}

	res := f.start(t, domain.OutputKindMindMap)
	waitIdle(t, f.orch)

	assert.Equal(t, domain.OutputStatusComplete, f.output(t, res.OutputID).Status)
	assert.Equal(t, 0, f.orch.GetActiveTaskCount(f.projectID))
	assert.Equal(t, 0, f.orch.limiter.InUse(f.projectID))

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	assert.NoError(t, f.orch.Shutdown(ctx))
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	g := newGate(1, mindMapEvents()...)
	gen := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, _ generation.Input, _ generation.Options) iter.Seq2[generation.Event, error] {
			return g.seq(ctx)
		},
	}
	f := newFixture(t, gen, 1)

	running := f.start(t, domain.OutputKindMindMap)
	queued := f.start(t, domain.OutputKindMindMap)
	<-g.entered

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		shutdownErr <- f.orch.Shutdown(ctx)
	}()

	// The running task only notices cancellation once its generator yields.
	require.Eventually(t, func() bool { return f.orch.registry.Len() == 0 }, waitTimeout, 10*time.Millisecond)
	g.release(0)
	require.NoError(t, <-shutdownErr)

	for _, id := range []uuid.UUID{running.TaskID, queued.TaskID} {
		calls := f.sink.CallsFor(id)
		require.NotEmpty(t, calls)
		assert.Equal(t, "cleanup", calls[len(calls)-1].Method)
		assert.Equal(t, 0, f.sink.Count(id, "complete"))
	}
	assert.Equal(t, 1, gen.GenerateCallCount(), "queued task never reached the generator")

	_, err := f.orch.StartGeneration(context.Background(), StartGenerationRequest{
		ProjectID: f.projectID,
		Kind:      "mindmap",
	})
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestFailureMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{ErrNoContent, "the selected documents contain no text"},
		{generation.ErrContentBlocked, "the content was blocked by the model's safety filters"},
		{generation.ErrInvalidResponse, "the model returned an invalid response"},
		{ErrInvalidEvent, "the model returned an invalid response"},
		{errors.New("boom"), "generation failed"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, failureMessage(tc.err), tc.err.Error())
	}
}

func TestTasksSnapshotDecodes(t *testing.T) {
	t.Parallel()

	g := newGate(1, mindMapEvents()...)
	gen := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, _ generation.Input, _ generation.Options) iter.Seq2[generation.Event, error] {
			return g.seq(ctx)
		},
	}
	f := newFixture(t, gen, 1)
	res := f.start(t, domain.OutputKindMindMap)
	<-g.entered

	infos := f.orch.Tasks(f.projectID)
	require.Len(t, infos, 1)
	assert.Equal(t, res.TaskID, infos[0].ID)
	assert.Equal(t, TaskStatusRunning, infos[0].Status)

	data, err := json.Marshal(infos[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"running"`)

	g.release(0)
	waitIdle(t, f.orch)
}
