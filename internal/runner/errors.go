package runner

import (
	"fmt"
	"strings"

	"clipper/internal/services"
)

// ErrorKind classifies a failed invocation.
type ErrorKind string

const (
	KindStart     ErrorKind = "start"
	KindExit      ErrorKind = "exit"
	KindTimeout   ErrorKind = "timeout"
	KindCancelled ErrorKind = "cancelled"
)

// RunError describes a failed invocation. Tail holds the last redacted
// output lines for diagnostics.
type RunError struct {
	Kind     ErrorKind
	Command  string
	ExitCode int
	Tail     []string
	Err      error
}

func (e *RunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Command, e.Kind)
	if e.Kind == KindExit {
		fmt.Fprintf(&b, " (code %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes the cause and the matching services marker.
func (e *RunError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	switch e.Kind {
	case KindTimeout:
		errs = append(errs, services.ErrTimeout)
	case KindCancelled:
		errs = append(errs, services.ErrCancelled)
	default:
		errs = append(errs, services.ErrExternalTool)
	}
	return errs
}

// LastLine returns the final non-empty tail line.
func (e *RunError) LastLine() string {
	for i := len(e.Tail) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(e.Tail[i]); line != "" {
			return line
		}
	}
	return ""
}
