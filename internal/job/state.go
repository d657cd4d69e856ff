package job

import (
	"errors"
	"fmt"
	"strings"
)

// State represents the lifecycle of a job.
type State string

const (
	StateCreated              State = "created"
	StateProbing              State = "probing"
	StateDirectProceed        State = "direct_proceed"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateRejected             State = "rejected"
	StateFetching             State = "fetching"
	StateEncoding             State = "encoding"
	StateUploading            State = "uploading"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
	StateCancelled            State = "cancelled"
)

// ErrInvalidTransition reports a transition outside the state table.
var ErrInvalidTransition = errors.New("invalid state transition")

var allStates = []State{
	StateCreated,
	StateProbing,
	StateDirectProceed,
	StateAwaitingConfirmation,
	StateRejected,
	StateFetching,
	StateEncoding,
	StateUploading,
	StateCompleted,
	StateFailed,
	StateCancelled,
}

var terminalStates = map[State]struct{}{
	StateCompleted: {},
	StateFailed:    {},
	StateCancelled: {},
	StateRejected:  {},
}

var workingStates = map[State]struct{}{
	StateFetching:  {},
	StateEncoding:  {},
	StateUploading: {},
}

// Failed and Cancelled are reachable from every non-terminal state and are
// not listed here.
var forwardTransitions = map[State][]State{
	StateCreated:              {StateProbing},
	StateProbing:              {StateDirectProceed, StateAwaitingConfirmation, StateRejected},
	StateDirectProceed:        {StateFetching},
	StateAwaitingConfirmation: {StateFetching},
	StateFetching:             {StateEncoding},
	StateEncoding:             {StateUploading},
	StateUploading:            {StateCompleted},
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStates {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed.
func (s State) IsTerminal() bool {
	_, ok := terminalStates[s]
	return ok
}

// IsWorking reports whether the state runs a fetch, encode or upload.
func (s State) IsWorking() bool {
	_, ok := workingStates[s]
	return ok
}

// TransitionError describes a rejected transition.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Next validates a transition against the state table.
func Next(from, to State) error {
	if from.IsTerminal() {
		return &TransitionError{From: from, To: to}
	}
	if to == StateFailed || to == StateCancelled {
		return nil
	}
	for _, allowed := range forwardTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}
