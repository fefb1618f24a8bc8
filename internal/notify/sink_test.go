package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct {
	calls int
	err   error
}

func (f *failingSink) NotifyStarted(context.Context, Task) error { f.calls++; return f.err }
func (f *failingSink) NotifyEvent(context.Context, Task, generation.Event) error {
	f.calls++
	return f.err
}
func (f *failingSink) NotifyComplete(context.Context, Task, string) error { f.calls++; return f.err }
func (f *failingSink) NotifyError(context.Context, Task, string) error    { f.calls++; return f.err }
func (f *failingSink) CleanupTask(context.Context, uuid.UUID) error       { f.calls++; return f.err }

func TestMultiSink_CallsEverySink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	errA := errors.New("a failed")
	a := &failingSink{err: errA}
	hub := NewHub(4, testLogger())
	b := &failingSink{}

	task := newTask(uuid.New())
	ch, cancel := hub.Subscribe(task.ProjectID)
	defer cancel()

	multi := MultiSink{a, hub, b}

	err := multi.NotifyStarted(ctx, task)
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	n := <-ch
	assert.Equal(t, TypeStarted, n.Type)

	a.err = nil
	require.NoError(t, multi.NotifyEvent(ctx, task, generation.TokenEvent("x")))
	require.NoError(t, multi.NotifyComplete(ctx, task, "ok"))
	require.NoError(t, multi.NotifyError(ctx, task, "bad"))
	require.NoError(t, multi.CleanupTask(ctx, task.ID))
	assert.Equal(t, 5, a.calls)
	assert.Equal(t, 5, b.calls)
	assert.Equal(t, 0, hub.TrackedTasks())
}
