package diag

import (
	"fmt"
	"time"
)

// NewError creates a new error with a message, mirroring the teacher's
// kernel/utils.NewError.
func NewError(msg string) error {
	return fmt.Errorf("%s", msg)
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// TimeoutError reports an operation that exceeded its bound, mirroring the
// teacher's kernel/utils.TimeoutError. No operation in this module returns
// it: parallel joins and key acquisition have no deadline.
func TimeoutError(op string, after time.Duration) error {
	return fmt.Errorf("%s: timed out after %s", op, after)
}
