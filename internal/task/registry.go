package task

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the tasks that are still allowed to run and notify.
// A task that is no longer present must not emit anything further.
type Registry struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*GenerationTask
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[uuid.UUID]*GenerationTask)}
}

// Add registers t. Returns ErrDuplicateTask if its ID is already present.
func (r *Registry) Add(t *GenerationTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[t.ID]; exists {
		return ErrDuplicateTask
	}
	r.tasks[t.ID] = t
	return nil
}

// Contains reports whether the task is registered.
func (r *Registry) Contains(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.tasks[id]
	return ok
}

// MarkRunning moves a registered task to running. Returns false if the task
// was removed in the meantime.
func (r *Registry) MarkRunning(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return false
	}
	t.Status = TaskStatusRunning
	return true
}

// Remove deregisters the task and reports whether it was present.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	return true
}

// CancelForProject cancels and deregisters the task if it belongs to the
// project. Returns false without changing anything otherwise.
func (r *Registry) CancelForProject(projectID, taskID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok || t.ProjectID != projectID {
		return false
	}
	if t.cancel != nil {
		t.cancel()
	}
	delete(r.tasks, taskID)
	return true
}

// CancelAll cancels and deregisters every task, returning how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.tasks)
	for id, t := range r.tasks {
		if t.cancel != nil {
			t.cancel()
		}
		delete(r.tasks, id)
	}
	return n
}

// CountByProject returns the number of registered tasks of the project.
func (r *Registry) CountByProject(projectID uuid.UUID) int {
	return r.count(projectID, func(*GenerationTask) bool { return true })
}

// CountRunningByProject returns the number of running tasks of the project.
func (r *Registry) CountRunningByProject(projectID uuid.UUID) int {
	return r.count(projectID, func(t *GenerationTask) bool {
		return t.Status == TaskStatusRunning
	})
}

func (r *Registry) count(projectID uuid.UUID, match func(*GenerationTask) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.tasks {
		if t.ProjectID == projectID && match(t) {
			n++
		}
	}
	return n
}

// Snapshot returns the registered tasks of the project, oldest first.
func (r *Registry) Snapshot(projectID uuid.UUID) []Info {
	r.mu.Lock()
	infos := make([]Info, 0)
	for _, t := range r.tasks {
		if t.ProjectID == projectID {
			infos = append(infos, t.snapshot())
		}
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Len returns the number of registered tasks across all projects.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
