package mocks

import (
	"context"
	"iter"
	"sync"

	"github.com/phrazzld/scry-studio/internal/generation"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// Custom behavior functions
	GenerateFn    func(ctx context.Context, in generation.Input, opts generation.Options) iter.Seq2[generation.Event, error]
	ExplainNodeFn func(ctx context.Context, req generation.NodeRequest) iter.Seq2[generation.Event, error]
	ExpandNodeFn  func(ctx context.Context, req generation.NodeRequest) iter.Seq2[generation.Event, error]

	// Default response values: Events are yielded in order, then Err if set
	Events []generation.Event
	Err    error

	// Call tracking for verification
	GenerateCalls struct {
		mu      sync.Mutex
		Count   int
		Inputs  []generation.Input
		Options []generation.Options
	}

	ExplainNodeCalls struct {
		mu       sync.Mutex
		Count    int
		Requests []generation.NodeRequest
	}

	ExpandNodeCalls struct {
		mu       sync.Mutex
		Count    int
		Requests []generation.NodeRequest
	}
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements the generation.Generator interface
func (m *MockGenerator) Generate(
	ctx context.Context,
	in generation.Input,
	opts generation.Options,
) iter.Seq2[generation.Event, error] {
	m.GenerateCalls.mu.Lock()
	m.GenerateCalls.Count++
	m.GenerateCalls.Inputs = append(m.GenerateCalls.Inputs, in)
	m.GenerateCalls.Options = append(m.GenerateCalls.Options, opts)
	m.GenerateCalls.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, in, opts)
	}
	return EventSeq(ctx, m.Events, m.Err)
}

// ExplainNode implements the generation.Generator interface
func (m *MockGenerator) ExplainNode(ctx context.Context, req generation.NodeRequest) iter.Seq2[generation.Event, error] {
	m.ExplainNodeCalls.mu.Lock()
	m.ExplainNodeCalls.Count++
	m.ExplainNodeCalls.Requests = append(m.ExplainNodeCalls.Requests, req)
	m.ExplainNodeCalls.mu.Unlock()

	if m.ExplainNodeFn != nil {
		return m.ExplainNodeFn(ctx, req)
	}
	return EventSeq(ctx, m.Events, m.Err)
}

// ExpandNode implements the generation.Generator interface
func (m *MockGenerator) ExpandNode(ctx context.Context, req generation.NodeRequest) iter.Seq2[generation.Event, error] {
	m.ExpandNodeCalls.mu.Lock()
	m.ExpandNodeCalls.Count++
	m.ExpandNodeCalls.Requests = append(m.ExpandNodeCalls.Requests, req)
	m.ExpandNodeCalls.mu.Unlock()

	if m.ExpandNodeFn != nil {
		return m.ExpandNodeFn(ctx, req)
	}
	return EventSeq(ctx, m.Events, m.Err)
}

// GenerateCallCount returns how many times Generate was called
func (m *MockGenerator) GenerateCallCount() int {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	return m.GenerateCalls.Count
}

// LastInput returns the input of the most recent Generate call
func (m *MockGenerator) LastInput() (generation.Input, bool) {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	if len(m.GenerateCalls.Inputs) == 0 {
		return generation.Input{}, false
	}
	return m.GenerateCalls.Inputs[len(m.GenerateCalls.Inputs)-1], true
}

// EventSeq returns a sequence yielding events in order and then err, if
// non-nil. It stops early when ctx is done.
func EventSeq(ctx context.Context, events []generation.Event, err error) iter.Seq2[generation.Event, error] {
	return func(yield func(generation.Event, error) bool) {
		for _, ev := range events {
			if ctx.Err() != nil {
				yield(generation.Event{}, ctx.Err())
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err != nil {
			yield(generation.Event{}, err)
		}
	}
}

// NewMockGeneratorWithEvents creates a MockGenerator that yields the given events
func NewMockGeneratorWithEvents(events ...generation.Event) *MockGenerator {
	return &MockGenerator{Events: events}
}

// NewMockGeneratorWithError creates a MockGenerator that fails immediately
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{Err: err}
}
