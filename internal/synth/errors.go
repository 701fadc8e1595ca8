package synth

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below reports its sentinel through Is,
// so callers can branch with errors.Is and inspect details with errors.As.
var (
	ErrParse             = errors.New("parse error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnresolvableName  = errors.New("unresolvable name")
	ErrSandboxViolation  = errors.New("sandbox violation")
	ErrDepthExceeded     = errors.New("recursion depth exceeded")
	ErrFixedEntry        = errors.New("fixed namespace entry")
)

// ParseError reports generated source that does not parse as Go.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse error: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// MalformedResponseError reports a completion reply with no usable code block,
// or a block that fails to parse or compile.
type MalformedResponseError struct {
	Name   string // function being synthesized, or "main" for the entry program
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response for %s: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed response for %s: %s", e.Name, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// UnresolvableNameError reports a name the sandbox or the reply does not expose.
type UnresolvableNameError struct {
	Name   string
	Reason string
}

func (e *UnresolvableNameError) Error() string {
	return fmt.Sprintf("unresolvable name %q: %s", e.Name, e.Reason)
}

func (e *UnresolvableNameError) Is(target error) bool { return target == ErrUnresolvableName }

// SandboxViolationError reports generated code importing a package outside the allow-list.
type SandboxViolationError struct {
	Name   string
	Import string
}

func (e *SandboxViolationError) Error() string {
	return fmt.Sprintf("%s imports forbidden package %q", e.Name, e.Import)
}

func (e *SandboxViolationError) Is(target error) bool { return target == ErrSandboxViolation }
