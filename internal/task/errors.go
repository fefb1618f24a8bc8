package task

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
)

// Common errors returned by the task package
var (
	// ErrNilGenerator is returned when a nil generator is provided
	ErrNilGenerator = errors.New("generator cannot be nil")

	// ErrNilOutputStore is returned when a nil output store is provided
	ErrNilOutputStore = errors.New("output store cannot be nil")

	// ErrNilDocumentStore is returned when a nil document store is provided
	ErrNilDocumentStore = errors.New("document store cannot be nil")

	// ErrNilSink is returned when a nil notification sink is provided
	ErrNilSink = errors.New("notification sink cannot be nil")

	// ErrNilLogger is returned when a nil logger is provided
	ErrNilLogger = errors.New("logger cannot be nil")

	// ErrInvalidConfig is returned when the orchestrator configuration is invalid
	ErrInvalidConfig = errors.New("invalid orchestrator configuration")

	// ErrNoContent is returned when none of the selected documents has text
	ErrNoContent = fmt.Errorf("task: %w", generation.ErrNoContent)

	// ErrDuplicateTask is returned when a task ID is registered twice
	ErrDuplicateTask = errors.New("task already registered")

	// ErrShuttingDown is returned when a task is started after Shutdown
	ErrShuttingDown = errors.New("orchestrator is shutting down")

	// ErrStreamConsumed is yielded when an explanation stream is iterated twice
	ErrStreamConsumed = errors.New("explanation stream already consumed")

	// ErrInvalidEvent is returned when an event does not carry what its kind requires
	ErrInvalidEvent = errors.New("invalid generation event")

	// ErrNotMindMap is returned when a node operation targets another output kind
	ErrNotMindMap = fmt.Errorf("%w: output is not a mind map", domain.ErrValidation)

	// ErrOutputNotComplete is returned when a node operation targets an unfinished output
	ErrOutputNotComplete = fmt.Errorf("%w: output is not complete", domain.ErrValidation)

	// errCancelled marks the cancelled outcome; its text is sent to clients.
	errCancelled = errors.New("generation cancelled")
)
