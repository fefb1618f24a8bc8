package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
)

// Type identifies the kind of notification.
type Type string

// Notification types
const (
	TypeStarted  Type = "started"
	TypeEvent    Type = "event"
	TypeComplete Type = "complete"
	TypeError    Type = "error"
)

// Task describes the task a notification belongs to.
type Task struct {
	ID        uuid.UUID         `json:"task_id"`
	ProjectID uuid.UUID         `json:"project_id"`
	OutputID  uuid.UUID         `json:"output_id"`
	Type      string            `json:"task_type"`
	Kind      domain.OutputKind `json:"output_kind,omitempty"`
	NodeID    string            `json:"node_id,omitempty"`
}

// Notification is a single message sent to clients watching a project.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	Type      Type              `json:"type"`
	Task      Task              `json:"task"`
	Seq       int64             `json:"seq"`
	Event     *generation.Event `json:"event,omitempty"`
	Message   string            `json:"message,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func newNotification(typ Type, task Task, seq int64) Notification {
	return Notification{
		ID:        uuid.New(),
		Type:      typ,
		Task:      task,
		Seq:       seq,
		CreatedAt: time.Now().UTC(),
	}
}
