package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/generation"
)

// Sink receives the progress of every task. Calls for one task are made
// sequentially by the task's goroutine; calls for different tasks may be
// concurrent.
type Sink interface {
	NotifyStarted(ctx context.Context, task Task) error
	NotifyEvent(ctx context.Context, task Task, event generation.Event) error
	// NotifyComplete reports success with a short human readable summary.
	NotifyComplete(ctx context.Context, task Task, summary string) error
	NotifyError(ctx context.Context, task Task, message string) error
	// CleanupTask releases anything held for the task. It is called exactly
	// once per task, after the last notification.
	CleanupTask(ctx context.Context, taskID uuid.UUID) error
}

// MultiSink forwards every call to each of its sinks. All sinks are called
// even if some fail; the failures are joined.
type MultiSink []Sink

var _ Sink = MultiSink(nil)

// NotifyStarted implements Sink.
func (m MultiSink) NotifyStarted(ctx context.Context, task Task) error {
	return m.each(func(s Sink) error { return s.NotifyStarted(ctx, task) })
}

// NotifyEvent implements Sink.
func (m MultiSink) NotifyEvent(ctx context.Context, task Task, event generation.Event) error {
	return m.each(func(s Sink) error { return s.NotifyEvent(ctx, task, event) })
}

// NotifyComplete implements Sink.
func (m MultiSink) NotifyComplete(ctx context.Context, task Task, summary string) error {
	return m.each(func(s Sink) error { return s.NotifyComplete(ctx, task, summary) })
}

// NotifyError implements Sink.
func (m MultiSink) NotifyError(ctx context.Context, task Task, message string) error {
	return m.each(func(s Sink) error { return s.NotifyError(ctx, task, message) })
}

// CleanupTask implements Sink.
func (m MultiSink) CleanupTask(ctx context.Context, taskID uuid.UUID) error {
	return m.each(func(s Sink) error { return s.CleanupTask(ctx, taskID) })
}

func (m MultiSink) each(fn func(Sink) error) error {
	var errs []error
	for _, s := range m {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
