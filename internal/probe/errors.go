package probe

import (
	"fmt"

	"clipper/internal/services"
)

// ErrorKind classifies probe failures.
type ErrorKind string

const (
	KindUnreachable ErrorKind = "unreachable"
	KindUnsupported ErrorKind = "unsupported"
	KindTimeout     ErrorKind = "timeout"
)

// Error is returned by Probe and ValidateURL.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := "probe " + string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the cause and the matching services marker.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	switch e.Kind {
	case KindTimeout:
		errs = append(errs, services.ErrTimeout)
	case KindUnsupported:
		errs = append(errs, services.ErrValidation)
	default:
		errs = append(errs, services.ErrTransient)
	}
	return errs
}
