package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/phrazzld/scry-studio/internal/notify"
)

// SinkCall is one recorded call on a RecordingSink.
type SinkCall struct {
	// Method is one of "started", "event", "complete", "error" or "cleanup"
	Method  string
	TaskID  uuid.UUID
	Task    notify.Task
	Event   generation.Event
	Message string
}

// RecordingSink implements notify.Sink and records every call in order
type RecordingSink struct {
	// Err is returned from every notification call when set
	Err error

	// OnEvent is called for every NotifyEvent before it is recorded
	OnEvent func(task notify.Task, event generation.Event)

	// OnCleanup is called for every CleanupTask before it is recorded
	OnCleanup func(taskID uuid.UUID)

	mu    sync.Mutex
	calls []SinkCall
}

var _ notify.Sink = (*RecordingSink)(nil)

// NewRecordingSink creates an empty RecordingSink
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// NotifyStarted implements notify.Sink
func (s *RecordingSink) NotifyStarted(ctx context.Context, task notify.Task) error {
	s.record(SinkCall{Method: "started", TaskID: task.ID, Task: task})
	return s.Err
}

// NotifyEvent implements notify.Sink
func (s *RecordingSink) NotifyEvent(ctx context.Context, task notify.Task, event generation.Event) error {
	if s.OnEvent != nil {
		s.OnEvent(task, event)
	}
	s.record(SinkCall{Method: "event", TaskID: task.ID, Task: task, Event: event})
	return s.Err
}

// NotifyComplete implements notify.Sink
func (s *RecordingSink) NotifyComplete(ctx context.Context, task notify.Task, summary string) error {
	s.record(SinkCall{Method: "complete", TaskID: task.ID, Task: task, Message: summary})
	return s.Err
}

// NotifyError implements notify.Sink
func (s *RecordingSink) NotifyError(ctx context.Context, task notify.Task, message string) error {
	s.record(SinkCall{Method: "error", TaskID: task.ID, Task: task, Message: message})
	return s.Err
}

// CleanupTask implements notify.Sink
func (s *RecordingSink) CleanupTask(ctx context.Context, taskID uuid.UUID) error {
	if s.OnCleanup != nil {
		s.OnCleanup(taskID)
	}
	s.record(SinkCall{Method: "cleanup", TaskID: taskID})
	return s.Err
}

// Calls returns every recorded call in order
func (s *RecordingSink) Calls() []SinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]SinkCall, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// CallsFor returns the recorded calls of one task in order
func (s *RecordingSink) CallsFor(taskID uuid.UUID) []SinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var calls []SinkCall
	for _, c := range s.calls {
		if c.TaskID == taskID {
			calls = append(calls, c)
		}
	}
	return calls
}

// Methods returns the method names of the calls of one task in order
func (s *RecordingSink) Methods(taskID uuid.UUID) []string {
	var methods []string
	for _, c := range s.CallsFor(taskID) {
		methods = append(methods, c.Method)
	}
	return methods
}

// Count returns how many calls of the given method were recorded for the task
func (s *RecordingSink) Count(taskID uuid.UUID, method string) int {
	n := 0
	for _, c := range s.CallsFor(taskID) {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (s *RecordingSink) record(c SinkCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}
