package task

// OutcomeKind classifies how a task ended.
type OutcomeKind int

// Task outcomes
const (
	// OutcomeCompleted means a result was produced and persisted.
	OutcomeCompleted OutcomeKind = iota + 1
	// OutcomeIncomplete means the stream ended without a result. Nothing is
	// persisted and the output keeps its status.
	OutcomeIncomplete
	// OutcomeFailed means the task hit an error.
	OutcomeFailed
	// OutcomeCancelled means the task was cancelled. Nothing is persisted.
	OutcomeCancelled
)

// String returns the outcome name used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state of a task.
type Outcome struct {
	Kind   OutcomeKind
	Result Result
	Err    error
}

func completed(res Result) Outcome { return Outcome{Kind: OutcomeCompleted, Result: res} }

func incomplete() Outcome { return Outcome{Kind: OutcomeIncomplete} }

func failed(err error) Outcome { return Outcome{Kind: OutcomeFailed, Err: err} }

func cancelled() Outcome { return Outcome{Kind: OutcomeCancelled, Err: errCancelled} }
