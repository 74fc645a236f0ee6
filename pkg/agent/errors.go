package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownVendor indicates a vendor name the factory does not support.
	ErrUnknownVendor = errors.New("unknown vendor")

	// ErrEmptyPrompt indicates a run was requested with nothing to send.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTurnLimit indicates the model kept requesting tools past the turn
	// budget without producing a final answer.
	ErrTurnLimit = errors.New("turn limit exceeded")

	// ErrContextSaturated indicates generation stopped because the
	// conversation no longer fits the model's context window.
	ErrContextSaturated = errors.New("context window saturated")

	// ErrContentFiltered indicates the vendor blocked the response.
	ErrContentFiltered = errors.New("response blocked by content filter")
)

// TransientVendorError wraps a vendor failure that is worth retrying, such
// as a rate limit or a server-side error.
type TransientVendorError struct {
	Vendor string
	Err    error
}

func (e *TransientVendorError) Error() string {
	return fmt.Sprintf("transient %s error: %v", e.Vendor, e.Err)
}

func (e *TransientVendorError) Unwrap() error { return e.Err }

// SchemaViolationError reports that the model's final answer never
// conformed to the requested output schema within the retry budget.
type SchemaViolationError struct {
	Violations []string
	Attempts   int
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("output schema violated after %d attempts: %s",
		e.Attempts, strings.Join(e.Violations, "; "))
}

// retryMarkers are substrings of vendor error messages that indicate a
// transient condition when the error is not already typed.
var retryMarkers = []string{
	"429", "500", "502", "503", "504", "529",
	"rate limit", "overloaded", "timed out",
	"connection reset", "ECONNRESET", "ETIMEDOUT", "EOF",
}

// IsRetryable reports whether a vendor call error should be retried with
// backoff. Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var transient *TransientVendorError
	if errors.As(err, &transient) {
		return true
	}
	msg := err.Error()
	for _, marker := range retryMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
