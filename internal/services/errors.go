package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers classify failures. Every error leaving a pipeline stage wraps
// exactly one of them.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrCancelled     = errors.New("cancelled")
)

// markerKinds is checked in order; the first match names the error.
var markerKinds = []struct {
	marker error
	kind   string
}{
	{ErrTimeout, "timeout"},
	{ErrCancelled, "cancelled"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrExternalTool, "external_tool"},
}

// Wrap tags err with marker and prefixes "stage: operation: message". A nil
// marker means ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a low-cardinality label for err, used in metrics and logs.
func Kind(err error) string {
	if err == nil {
		return "none"
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return "transient"
}

func buildDetail(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
