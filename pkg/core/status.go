package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed (target absent, text mismatch)
	StatusErrored                   // Unexpected error (provider broken, invalid locator)
	StatusSkipped                   // Previous step failed or run stopped
	StatusWarned                    // Optional step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element not found, text mismatch
	ErrCategoryTimeout                         // Operation timed out
	ErrCategoryConnection                      // Tree provider or bridge unavailable
	ErrCategoryStale                           // Node handle invalidated by the provider
	ErrCategoryAction                          // Invoke failed on a live node
	ErrCategoryConfig                          // Invalid configuration or locator
	ErrCategoryUnknown                         // Not an ExecutionError
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryStale:
		return "stale"
	case ErrCategoryAction:
		return "action"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// StatusFor maps an error category to the status a failing step should carry.
// Infrastructure problems are errors; everything else is a test failure.
func StatusFor(c ErrorCategory) StepStatus {
	switch c {
	case ErrCategoryNone:
		return StatusPassed
	case ErrCategoryConnection, ErrCategoryConfig, ErrCategoryUnknown:
		return StatusErrored
	default:
		return StatusFailed
	}
}
