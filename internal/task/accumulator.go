package task

import (
	"encoding/json"
	"fmt"

	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
)

// Result is what a finished task hands over for persistence.
type Result struct {
	// Data is the complete output data.
	Data json.RawMessage
	// Title is a title suggested by the model, if any.
	Title string
	// Summary is a short human readable description of the result.
	Summary string
	// Graph holds the folded nodes and edges of graph tasks. For expansions it
	// holds only the additions.
	Graph *domain.MindMap
}

// Accumulator folds the events of one task into a Result. The set of
// implementations is closed; use newAccumulator to select one.
type Accumulator interface {
	// Add folds one event. An error fails the task.
	Add(ev generation.Event) error
	// Result returns the folded result. ok is false when the stream ended
	// without producing anything that can be persisted.
	Result() (res Result, ok bool, err error)

	sealed()
}

// newAccumulator selects the accumulator for a task. base is the current mind
// map of the output being expanded and is ignored for other task types.
func newAccumulator(typ TaskType, kind domain.OutputKind, base *domain.MindMap) (Accumulator, error) {
	switch typ {
	case TaskTypeGenerate:
		switch kind {
		case domain.OutputKindMindMap:
			return &graphAccumulator{graph: &domain.MindMap{}}, nil
		case domain.OutputKindSummary:
			return &snapshotAccumulator{decode: decodeSummary}, nil
		case domain.OutputKindFlashcards:
			return &snapshotAccumulator{decode: decodeDeck}, nil
		}
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOutputKind, kind)
	case TaskTypeExplain:
		return &snapshotAccumulator{decode: decodeExplanation}, nil
	case TaskTypeExpand:
		if base == nil {
			base = &domain.MindMap{}
		}
		return &mergeAccumulator{
			merged: base.Clone(),
			added:  &domain.MindMap{},
		}, nil
	default:
		return nil, fmt.Errorf("unknown task type %q", typ)
	}
}

// graphAccumulator builds a mind map from node and edge events as they arrive.
type graphAccumulator struct {
	graph *domain.MindMap
}

func (a *graphAccumulator) sealed() {}

func (a *graphAccumulator) Add(ev generation.Event) error {
	return addGraphEvent(a.graph, ev)
}

// Result always returns the fold of the events seen so far, even when the
// stream produced no nodes.
func (a *graphAccumulator) Result() (Result, bool, error) {
	data, err := json.Marshal(a.graph)
	if err != nil {
		return Result{}, false, fmt.Errorf("encode mind map: %w", err)
	}
	return Result{
		Data:    data,
		Summary: a.graph.Describe(),
		Graph:   a.graph.Clone(),
	}, true, nil
}

// snapshotAccumulator ignores intermediate tokens and keeps the payload of
// the completion event.
type snapshotAccumulator struct {
	decode  func(json.RawMessage) (title, summary string, err error)
	payload json.RawMessage
	title   string
	summary string
}

func (a *snapshotAccumulator) sealed() {}

func (a *snapshotAccumulator) Add(ev generation.Event) error {
	switch ev.Kind {
	case generation.EventToken:
		return nil
	case generation.EventComplete:
		if len(ev.Payload) == 0 {
			return fmt.Errorf("%w: complete event without payload", ErrInvalidEvent)
		}
		title, summary, err := a.decode(ev.Payload)
		if err != nil {
			return err
		}
		a.payload = ev.Payload
		a.title = title
		a.summary = summary
		return nil
	default:
		return fmt.Errorf("%w: unexpected %s event", ErrInvalidEvent, ev.Kind)
	}
}

func (a *snapshotAccumulator) Result() (Result, bool, error) {
	if a.payload == nil {
		return Result{}, false, nil
	}
	return Result{Data: a.payload, Title: a.title, Summary: a.summary}, true, nil
}

// mergeAccumulator folds new nodes and edges into an existing mind map.
type mergeAccumulator struct {
	merged *domain.MindMap
	added  *domain.MindMap
}

func (a *mergeAccumulator) sealed() {}

func (a *mergeAccumulator) Add(ev generation.Event) error {
	if err := addGraphEvent(a.merged, ev); err != nil {
		return err
	}
	return addGraphEvent(a.added, ev)
}

func (a *mergeAccumulator) Result() (Result, bool, error) {
	if len(a.added.Nodes) == 0 {
		return Result{}, false, nil
	}
	data, err := json.Marshal(a.merged)
	if err != nil {
		return Result{}, false, fmt.Errorf("encode mind map: %w", err)
	}
	return Result{
		Data:    data,
		Summary: fmt.Sprintf("%s added", a.added.Describe()),
		Graph:   a.added.Clone(),
	}, true, nil
}

func addGraphEvent(m *domain.MindMap, ev generation.Event) error {
	switch ev.Kind {
	case generation.EventNode:
		if ev.Node == nil || !m.AddNode(*ev.Node) {
			return fmt.Errorf("%w: node event without node id", ErrInvalidEvent)
		}
	case generation.EventEdge:
		if ev.Edge == nil || !m.AddEdge(*ev.Edge) {
			return fmt.Errorf("%w: edge event without endpoints", ErrInvalidEvent)
		}
	case generation.EventToken, generation.EventComplete:
		// graph streams carry no payload of interest in these
	default:
		return fmt.Errorf("%w: unknown event kind %q", ErrInvalidEvent, ev.Kind)
	}
	return nil
}

// mergeGraph applies the nodes and edges of src to dst.
func mergeGraph(dst, src *domain.MindMap) {
	for _, n := range src.Nodes {
		dst.AddNode(n)
	}
	for _, e := range src.Edges {
		dst.AddEdge(e)
	}
}

func decodeSummary(payload json.RawMessage) (string, string, error) {
	var s domain.Summary
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", "", fmt.Errorf("%w: decode summary: %w", ErrInvalidEvent, err)
	}
	if err := s.Validate(); err != nil {
		return "", "", err
	}
	return s.Title, s.Describe(), nil
}

func decodeDeck(payload json.RawMessage) (string, string, error) {
	var d domain.FlashcardDeck
	if err := json.Unmarshal(payload, &d); err != nil {
		return "", "", fmt.Errorf("%w: decode flashcards: %w", ErrInvalidEvent, err)
	}
	if err := d.Validate(); err != nil {
		return "", "", err
	}
	return d.Title, d.Describe(), nil
}

func decodeExplanation(payload json.RawMessage) (string, string, error) {
	var e domain.Explanation
	if err := json.Unmarshal(payload, &e); err != nil {
		return "", "", fmt.Errorf("%w: decode explanation: %w", ErrInvalidEvent, err)
	}
	if e.Text == "" {
		return "", "", fmt.Errorf("%w: explanation is empty", domain.ErrEmptyContent)
	}
	return "", e.Describe(), nil
}
