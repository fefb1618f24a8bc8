package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OutputKind identifies what a generation produces.
type OutputKind string

// Supported output kinds
const (
	OutputKindMindMap    OutputKind = "mindmap"
	OutputKindSummary    OutputKind = "summary"
	OutputKindFlashcards OutputKind = "flashcards"
)

// ParseOutputKind converts a user supplied string into an OutputKind.
// Matching is case-insensitive; anything else wraps ErrValidation.
func ParseOutputKind(s string) (OutputKind, error) {
	kind := OutputKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidOutputKind, s)
	}
	return kind, nil
}

// Valid reports whether k is a supported output kind.
func (k OutputKind) Valid() bool {
	switch k {
	case OutputKindMindMap, OutputKindSummary, OutputKindFlashcards:
		return true
	default:
		return false
	}
}

// OutputStatus represents the generation state of an output
type OutputStatus string

// Possible output status values
const (
	OutputStatusGenerating OutputStatus = "generating"
	OutputStatusComplete   OutputStatus = "complete"
	OutputStatusError      OutputStatus = "error"
)

// Output is a generated artifact belonging to a project. It is created in the
// generating state before its task starts and is finalized at most once.
type Output struct {
	ID                uuid.UUID       `json:"id"`
	ProjectID         uuid.UUID       `json:"project_id"`
	Kind              OutputKind      `json:"kind"`
	SourceDocumentIDs []uuid.UUID     `json:"source_document_ids"`
	Status            OutputStatus    `json:"status"`
	Title             string          `json:"title"`
	Data              json.RawMessage `json:"data,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewOutput creates a new Output in the generating state.
// Returns an error if validation fails.
func NewOutput(projectID uuid.UUID, kind OutputKind, documentIDs []uuid.UUID, title string) (*Output, error) {
	now := time.Now().UTC()
	if title == "" {
		title = defaultTitle(kind)
	}

	ids := make([]uuid.UUID, len(documentIDs))
	copy(ids, documentIDs)

	output := &Output{
		ID:                uuid.New(),
		ProjectID:         projectID,
		Kind:              kind,
		SourceDocumentIDs: ids,
		Status:            OutputStatusGenerating,
		Title:             title,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := output.Validate(); err != nil {
		return nil, err
	}

	return output, nil
}

// Validate checks if the Output has valid data.
func (o *Output) Validate() error {
	if o.ID == uuid.Nil {
		return fmt.Errorf("%w: output ID cannot be empty", ErrInvalidID)
	}

	if o.ProjectID == uuid.Nil {
		return fmt.Errorf("%w: project ID cannot be empty", ErrInvalidID)
	}

	if !o.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOutputKind, o.Kind)
	}

	switch o.Status {
	case OutputStatusGenerating, OutputStatusComplete, OutputStatusError:
	default:
		return fmt.Errorf("%w: unknown output status %q", ErrValidation, o.Status)
	}

	return nil
}

// Complete stores the generated data and moves the output to complete.
// Only a generating output can be completed.
func (o *Output) Complete(data json.RawMessage, title string) error {
	if o.Status != OutputStatusGenerating {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, OutputStatusComplete)
	}
	if len(data) == 0 {
		return ErrEmptyContent
	}

	o.Data = data
	if title != "" {
		o.Title = title
	}
	o.Status = OutputStatusComplete
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail records a generation failure. Only a generating output can fail.
func (o *Output) Fail(message string) error {
	if o.Status != OutputStatusGenerating {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, OutputStatusError)
	}

	o.Status = OutputStatusError
	o.ErrorMessage = message
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// ReplaceData swaps the data of a completed mind map, used when nodes are
// expanded after the initial generation.
func (o *Output) ReplaceData(data json.RawMessage) error {
	if o.Kind != OutputKindMindMap {
		return fmt.Errorf("%w: only mind maps can be expanded, got %s", ErrValidation, o.Kind)
	}
	if o.Status != OutputStatusComplete {
		return fmt.Errorf("%w: cannot replace data of %s output", ErrInvalidTransition, o.Status)
	}
	if len(data) == 0 {
		return ErrEmptyContent
	}

	o.Data = data
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// MindMap decodes the output data as a mind map.
func (o *Output) MindMap() (*MindMap, error) {
	if o.Kind != OutputKindMindMap {
		return nil, fmt.Errorf("%w: output %s is a %s", ErrValidation, o.ID, o.Kind)
	}

	var m MindMap
	if len(o.Data) == 0 {
		return &m, nil
	}
	if err := json.Unmarshal(o.Data, &m); err != nil {
		return nil, fmt.Errorf("decode mind map: %w", err)
	}
	return &m, nil
}

func defaultTitle(kind OutputKind) string {
	switch kind {
	case OutputKindMindMap:
		return "Mind map"
	case OutputKindSummary:
		return "Summary"
	case OutputKindFlashcards:
		return "Flashcards"
	default:
		return "Output"
	}
}
