package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// BackendError classifies a failure from the embedding backend or the
// search engine. Retryable covers timeouts, rate limits and transient
// 5xx responses; everything else (malformed input, auth, missing model
// or index) is fatal and must not be retried.
type BackendError struct {
	Op        string // "embed" or "index"
	Retryable bool
	Err       error
}

func (e *BackendError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s backend: %s: %v", e.Op, kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsRetryable reports whether an operation that failed with err may be
// attempted again. Unclassified errors are treated as retryable so a
// flaky network path gets the benefit of the attempt ceiling;
// cancellation never is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return true
}
