package generation

import (
	"encoding/json"

	"github.com/phrazzld/scry-studio/internal/domain"
)

// EventKind identifies what an Event carries.
type EventKind string

// Event kinds produced by generators
const (
	EventNode     EventKind = "node"
	EventEdge     EventKind = "edge"
	EventToken    EventKind = "token"
	EventComplete EventKind = "complete"
)

// Event is one step of a generation stream. Exactly one of Node, Edge, Token
// or Payload is set, according to Kind.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Node    *domain.Node    `json:"node,omitempty"`
	Edge    *domain.Edge    `json:"edge,omitempty"`
	Token   string          `json:"token,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NodeEvent returns a node event.
func NodeEvent(n domain.Node) Event {
	return Event{Kind: EventNode, Node: &n}
}

// EdgeEvent returns an edge event.
func EdgeEvent(e domain.Edge) Event {
	return Event{Kind: EventEdge, Edge: &e}
}

// TokenEvent returns a token event.
func TokenEvent(text string) Event {
	return Event{Kind: EventToken, Token: text}
}

// CompleteEvent returns the terminal event of a single-shot generation.
func CompleteEvent(payload json.RawMessage) Event {
	return Event{Kind: EventComplete, Payload: payload}
}
