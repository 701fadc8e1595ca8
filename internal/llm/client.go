// Package llm provides the completion backends used to generate controller
// programs and helper functions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Request is a single completion request.
type Request struct {
	Prompt      string
	Model       string
	Temperature float64
}

// Client sends one prompt and returns the model's raw reply text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrTransient marks rate-limit and connectivity failures that are worth retrying.
var ErrTransient = errors.New("transient completion error")

// TransientError wraps a backend error that should be retried.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is reports ErrTransient so callers can use errors.Is.
func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// isNetworkError reports connectivity failures common to every HTTP backend.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
