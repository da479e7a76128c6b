package worker

import "errors"

var (
	// ErrJobAlreadyClaimed is returned when the job left QUEUED before this worker could claim it
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in QUEUED status")

	// ErrInvalidPayload is returned when a message body is not a valid task
	ErrInvalidPayload = errors.New("invalid task payload")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
