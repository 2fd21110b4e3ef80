package models

import "fmt"

// ErrorKind categorizes errors crossing the activity boundary so the
// workflow can choose a recovery strategy instead of parsing messages.
type ErrorKind int

const (
	ErrorKindTransient       ErrorKind = iota // network, timeout, 5xx → retried by Temporal
	ErrorKindRateLimit                        // 429 → workflow sleeps and retries
	ErrorKindContextOverflow                  // context window exceeded → ContinueAsNew
	ErrorKindToolFailure                      // single tool failed → reported to the model
	ErrorKindFatal                            // unrecoverable → workflow stops
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindTransient:
		return "Transient"
	case ErrorKindRateLimit:
		return "RateLimit"
	case ErrorKindContextOverflow:
		return "ContextOverflow"
	case ErrorKindToolFailure:
		return "ToolFailure"
	case ErrorKindFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// ActivityError is a classified error returned from an activity.
type ActivityError struct {
	Kind      ErrorKind              `json:"kind"`
	Retryable bool                   `json:"retryable"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ActivityError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// NewTransientError creates a retryable transient error.
func NewTransientError(message string) *ActivityError {
	return &ActivityError{Kind: ErrorKindTransient, Retryable: true, Message: message}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *ActivityError {
	return &ActivityError{Kind: ErrorKindRateLimit, Retryable: true, Message: message}
}

// NewContextOverflowError creates a context overflow error.
func NewContextOverflowError(message string) *ActivityError {
	return &ActivityError{Kind: ErrorKindContextOverflow, Retryable: false, Message: message}
}

// NewToolFailureError creates a tool failure error.
func NewToolFailureError(message string) *ActivityError {
	return &ActivityError{Kind: ErrorKindToolFailure, Retryable: false, Message: message}
}

// NewFatalError creates a fatal error.
func NewFatalError(message string) *ActivityError {
	return &ActivityError{Kind: ErrorKindFatal, Retryable: false, Message: message}
}

// ToolErrorDetails carries structured context for a failed tool activity.
// Attached to temporal.ApplicationError details so the workflow never has
// to parse error messages.
type ToolErrorDetails struct {
	Toolset string `json:"toolset,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Reason  string `json:"reason"`
}
