package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/generation"
)

// DefaultSubscriberBuffer is the channel capacity of a subscription.
const DefaultSubscriberBuffer = 64

type subscriber struct {
	ch      chan Notification
	dropped int
}

// Hub is an in-memory Sink that fans notifications out to the subscribers of
// the task's project. Publishing never blocks: a subscriber whose buffer is
// full misses the notification.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*subscriber]struct{}
	seq    map[uuid.UUID]int64
	buffer int
	logger *slog.Logger
}

var _ Sink = (*Hub)(nil)

// NewHub creates a hub. A non-positive buffer uses DefaultSubscriberBuffer.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[*subscriber]struct{}),
		seq:    make(map[uuid.UUID]int64),
		buffer: buffer,
		logger: logger.With("component", "notification_hub"),
	}
}

// Subscribe registers a subscriber for projectID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(projectID uuid.UUID) (<-chan Notification, func()) {
	sub := &subscriber{ch: make(chan Notification, h.buffer)}

	h.mu.Lock()
	if h.subs[projectID] == nil {
		h.subs[projectID] = make(map[*subscriber]struct{})
	}
	h.subs[projectID][sub] = struct{}{}
	count := len(h.subs[projectID])
	h.mu.Unlock()

	h.logger.Debug("registered subscriber", "project_id", projectID, "subscriber_count", count)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[projectID], sub)
			if len(h.subs[projectID]) == 0 {
				delete(h.subs, projectID)
			}
			close(sub.ch)
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// SubscriberCount returns the number of subscribers of projectID.
func (h *Hub) SubscriberCount(projectID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[projectID])
}

// NotifyStarted implements Sink.
func (h *Hub) NotifyStarted(ctx context.Context, task Task) error {
	h.publish(h.next(TypeStarted, task))
	return nil
}

// NotifyEvent implements Sink.
func (h *Hub) NotifyEvent(ctx context.Context, task Task, event generation.Event) error {
	n := h.next(TypeEvent, task)
	n.Event = &event
	h.publish(n)
	return nil
}

// NotifyComplete implements Sink.
func (h *Hub) NotifyComplete(ctx context.Context, task Task, summary string) error {
	n := h.next(TypeComplete, task)
	n.Message = summary
	h.publish(n)
	return nil
}

// NotifyError implements Sink.
func (h *Hub) NotifyError(ctx context.Context, task Task, message string) error {
	n := h.next(TypeError, task)
	n.Message = message
	h.publish(n)
	return nil
}

// CleanupTask implements Sink. It forgets the task's sequence counter.
func (h *Hub) CleanupTask(ctx context.Context, taskID uuid.UUID) error {
	h.mu.Lock()
	delete(h.seq, taskID)
	h.mu.Unlock()
	return nil
}

// TrackedTasks returns the number of tasks with a live sequence counter.
func (h *Hub) TrackedTasks() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.seq)
}

func (h *Hub) next(typ Type, task Task) Notification {
	h.mu.Lock()
	h.seq[task.ID]++
	seq := h.seq[task.ID]
	h.mu.Unlock()
	return newNotification(typ, task, seq)
}

func (h *Hub) publish(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[n.Task.ProjectID] {
		select {
		case sub.ch <- n:
		default:
			sub.dropped++
			h.logger.Warn("subscriber buffer full, dropping notification",
				"project_id", n.Task.ProjectID,
				"task_id", n.Task.ID,
				"type", n.Type,
				"dropped", sub.dropped)
		}
	}
}
