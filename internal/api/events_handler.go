package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/notify"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
)

// DefaultPingInterval is how often an idle event stream is pinged.
const DefaultPingInterval = 15 * time.Second

// Subscriber delivers the notifications of a project.
type Subscriber interface {
	Subscribe(projectID uuid.UUID) (<-chan notify.Notification, func())
}

// EventsHandler streams task notifications to clients as server-sent events.
type EventsHandler struct {
	hub          Subscriber
	pingInterval time.Duration
	logger       *slog.Logger
}

// NewEventsHandler creates a new EventsHandler. A non-positive pingInterval
// selects DefaultPingInterval.
func NewEventsHandler(hub Subscriber, pingInterval time.Duration, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for EventsHandler")
	}
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}

	return &EventsHandler{
		hub:          hub,
		pingInterval: pingInterval,
		logger:       logger.With(slog.String("component", "events_handler")),
	}
}

// Stream handles GET /projects/{projectID}/events requests. Every
// notification is written as an event named after its type until the client
// disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ids, ok := handlePathUUIDs(w, r, log)
	if !ok {
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		HandleAPIError(w, r, err, "Streaming is not supported")
		return
	}

	notifications, unsubscribe := h.hub.Subscribe(ids[0])
	defer unsubscribe()

	log.Debug("event stream opened")

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug("event stream closed by client")
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if err := sse.Event(string(n.Type), n); err != nil {
				log.Debug("failed to write notification", "error", err)
				return
			}
		case <-ticker.C:
			if err := sse.Ping(); err != nil {
				return
			}
		}
	}
}
