package isolated

import (
	"fmt"
	"strings"
)

// ProcessError is a failed subprocess invocation with its captured output.
type ProcessError struct {
	Args     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
}

// BackendError signals that the build backend invocation failed. Err carries
// the root cause, typically a *ProcessError with the backend's output.
type BackendError struct {
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	return e.Message
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
