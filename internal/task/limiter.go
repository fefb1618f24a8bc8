package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ConcurrencyLimiter bounds how many tasks of one project run at the same
// time. Each project gets its own semaphore on first use; semaphores are
// never removed.
type ConcurrencyLimiter struct {
	capacity int64

	mu       sync.Mutex
	projects map[uuid.UUID]*projectSlots
}

type projectSlots struct {
	sem   *semaphore.Weighted
	inUse atomic.Int64
}

// NewConcurrencyLimiter creates a limiter allowing capacity slots per project.
// A capacity below one is treated as one.
func NewConcurrencyLimiter(capacity int) *ConcurrencyLimiter {
	if capacity < 1 {
		capacity = 1
	}
	return &ConcurrencyLimiter{
		capacity: int64(capacity),
		projects: make(map[uuid.UUID]*projectSlots),
	}
}

// Capacity returns the number of slots per project.
func (l *ConcurrencyLimiter) Capacity() int {
	return int(l.capacity)
}

// Acquire blocks until a slot of the project is free or ctx is done.
// The returned release function may be called any number of times; only the
// first call frees the slot.
func (l *ConcurrencyLimiter) Acquire(ctx context.Context, projectID uuid.UUID) (func(), error) {
	slots := l.slots(projectID)
	if err := slots.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	slots.inUse.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			slots.inUse.Add(-1)
			slots.sem.Release(1)
		})
	}, nil
}

// InUse returns the number of slots currently held for the project.
func (l *ConcurrencyLimiter) InUse(projectID uuid.UUID) int {
	l.mu.Lock()
	slots, ok := l.projects[projectID]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	return int(slots.inUse.Load())
}

func (l *ConcurrencyLimiter) slots(projectID uuid.UUID) *projectSlots {
	l.mu.Lock()
	defer l.mu.Unlock()

	slots, ok := l.projects[projectID]
	if !ok {
		slots = &projectSlots{sem: semaphore.NewWeighted(l.capacity)}
		l.projects[projectID] = slots
	}
	return slots
}
