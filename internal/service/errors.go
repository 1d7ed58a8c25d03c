package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout reports a run cut short by its timeout or by the caller cancelling ctx.
type ErrTimeout struct {
	error
	Timeout time.Duration
}

func NewErrTimeout(timeout time.Duration, cause error) *ErrTimeout {
	var msg string
	switch {
	case errors.Is(cause, context.Canceled):
		msg = "health check was cancelled"
	case timeout <= 0:
		msg = "health check ran past the deadline of its context"
	default:
		msg = fmt.Sprintf("health check did not complete within %s", timeout)
	}
	return &ErrTimeout{error: fmt.Errorf("%s: %w", msg, cause), Timeout: timeout}
}

func (e *ErrTimeout) Unwrap() error {
	return e.error
}
