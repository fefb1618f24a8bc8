package generation

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// Generator produces generation events for the orchestrator.
//
// Every method returns a finite, single-use sequence. A non-nil error ends the
// sequence. Implementations must stop promptly when ctx is cancelled or when
// the consumer stops iterating.
type Generator interface {
	// Generate streams the events for a new output of in.Kind.
	Generate(ctx context.Context, in Input, opts Options) iter.Seq2[Event, error]

	// ExplainNode streams token events explaining a single node, followed by a
	// complete event whose payload is a domain.Explanation.
	ExplainNode(ctx context.Context, req NodeRequest) iter.Seq2[Event, error]

	// ExpandNode streams node and edge events for new children of req.Node.
	ExpandNode(ctx context.Context, req NodeRequest) iter.Seq2[Event, error]
}

// Input is the assembled source material for a generation.
type Input struct {
	Kind        domain.OutputKind
	Title       string
	Text        string
	DocumentIDs []uuid.UUID
}

// Options tune a generation. Zero values fall back to defaults.
type Options struct {
	Language     string `json:"language,omitempty" validate:"omitempty,max=32"`
	MaxNodes     int    `json:"max_nodes,omitempty" validate:"omitempty,min=1,max=200"`
	MaxDepth     int    `json:"max_depth,omitempty" validate:"omitempty,min=1,max=6"`
	CardCount    int    `json:"card_count,omitempty" validate:"omitempty,min=1,max=100"`
	Instructions string `json:"instructions,omitempty" validate:"omitempty,max=2000"`
}

// Default option values
const (
	DefaultLanguage  = "English"
	DefaultMaxNodes  = 30
	DefaultMaxDepth  = 3
	DefaultCardCount = 10
)

// WithDefaults returns a copy of o with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = DefaultMaxNodes
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.CardCount <= 0 {
		o.CardCount = DefaultCardCount
	}
	return o
}

// NodeRequest asks for an explanation or expansion of one mind map node.
type NodeRequest struct {
	OutputID   uuid.UUID
	Node       domain.Node
	MindMap    *domain.MindMap
	SourceText string
	Options    Options
}
