package chef

import (
	"bytes"
	"errors"
	"strings"

	"github.com/pyforge/wheelhouse/internal/isolated"
)

// BuildError is the single error type surfaced for backend build failures.
// Its message embeds the backend's own output; the underlying cause chain is
// deliberately not exposed.
type BuildError struct {
	msg string
}

func (e *BuildError) Error() string {
	return e.msg
}

// newBuildError flattens a backend failure into a BuildError. When the cause
// is a failed subprocess its stderr is appended (stdout when stderr is
// empty); other causes contribute their message.
func newBuildError(cause *isolated.BackendError) *BuildError {
	parts := []string{cause.Message}

	var procErr *isolated.ProcessError
	switch {
	case errors.As(cause.Err, &procErr):
		output := bytes.TrimSpace(procErr.Stderr)
		if len(output) == 0 {
			output = bytes.TrimSpace(procErr.Stdout)
		}
		if len(output) > 0 {
			parts = append(parts, string(output))
		}
	case cause.Err != nil:
		parts = append(parts, cause.Err.Error())
	}

	return &BuildError{msg: strings.Join(parts, "\n\n")}
}
