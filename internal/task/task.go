package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/notify"
)

// TaskType identifies what a task does.
type TaskType string

// Task type values
const (
	TaskTypeGenerate TaskType = "generate"
	TaskTypeExplain  TaskType = "explain"
	TaskTypeExpand   TaskType = "expand"
)

// TaskStatus represents the current state of a registered task
type TaskStatus string

// Possible task status values
const (
	// TaskStatusQueued means the task waits for a concurrency slot.
	TaskStatusQueued TaskStatus = "queued"
	// TaskStatusRunning means the task holds a slot and streams events.
	TaskStatusRunning TaskStatus = "running"
)

// GenerationTask is a registered background job. It is owned by the
// Registry from the moment it starts until it reaches a terminal state or
// is cancelled, and is removed exactly once.
type GenerationTask struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	OutputID   uuid.UUID
	Type       TaskType
	OutputKind domain.OutputKind
	NodeID     string
	Status     TaskStatus
	CreatedAt  time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func newGenerationTask(
	typ TaskType,
	projectID, outputID uuid.UUID,
	kind domain.OutputKind,
	nodeID string,
) *GenerationTask {
	return &GenerationTask{
		ID:         uuid.New(),
		ProjectID:  projectID,
		OutputID:   outputID,
		Type:       typ,
		OutputKind: kind,
		NodeID:     nodeID,
		Status:     TaskStatusQueued,
		CreatedAt:  time.Now().UTC(),
		done:       make(chan struct{}),
	}
}

// Done is closed when the task's goroutine has exited and cleanup ran.
func (t *GenerationTask) Done() <-chan struct{} {
	return t.done
}

// info describes the task to notification sinks.
func (t *GenerationTask) info() notify.Task {
	return notify.Task{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		OutputID:  t.OutputID,
		Type:      string(t.Type),
		Kind:      t.OutputKind,
		NodeID:    t.NodeID,
	}
}

// Info is a point-in-time view of a registered task.
type Info struct {
	ID         uuid.UUID         `json:"task_id"`
	ProjectID  uuid.UUID         `json:"project_id"`
	OutputID   uuid.UUID         `json:"output_id"`
	Type       TaskType          `json:"task_type"`
	OutputKind domain.OutputKind `json:"output_kind"`
	NodeID     string            `json:"node_id,omitempty"`
	Status     TaskStatus        `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (t *GenerationTask) snapshot() Info {
	return Info{
		ID:         t.ID,
		ProjectID:  t.ProjectID,
		OutputID:   t.OutputID,
		Type:       t.Type,
		OutputKind: t.OutputKind,
		NodeID:     t.NodeID,
		Status:     t.Status,
		CreatedAt:  t.CreatedAt,
	}
}
