package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrTerminalState is returned when a transition is attempted on a completed or rejected report
	ErrTerminalState = errors.New("report is in a terminal state")

	// ErrInvalidFundType is returned when a fund type cannot be resolved to a stage sequence
	ErrInvalidFundType = errors.New("invalid fund type")

	// ErrValidation is returned when a request is missing a field required by the action
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the actor may not act on the report in its current status
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a report does not exist or the actor may not see it
	ErrNotFound = errors.New("report not found")

	// ErrImmutableReport is returned when report content is changed outside of Draft
	ErrImmutableReport = errors.New("report is immutable once submitted")

	// ErrStaleState is returned when another transition was committed since the report was read
	ErrStaleState = errors.New("report was modified concurrently")
)
