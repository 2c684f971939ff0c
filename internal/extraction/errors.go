package extraction

import (
	"errors"
	"fmt"
)

// ErrSoftTimeout indicates a single extraction call exceeded its soft
// timeout. The session aborts gracefully; candidates already written are
// preserved.
var ErrSoftTimeout = errors.New("extraction soft timeout exceeded")

// SchemaValidationError indicates an external response did not match the
// required shape. For extraction it fails one concept type; for the
// generative fallback it fails the whole synthesis attempt.
type SchemaValidationError struct {
	Subject string // concept type or "decision_point"
	Reason  string
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed for %s: %s", e.Subject, e.Reason)
}

// retryableError marks errors worth retrying (rate limits, 5xx, network).
type retryableError struct {
	err error
}

func (r *retryableError) Error() string {
	return r.err.Error()
}

func (r *retryableError) Unwrap() error {
	return r.err
}

// isRetryableError reports whether err should be retried.
func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
