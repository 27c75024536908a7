package workflow

import "context"

// StateMachine tracks the status of one report and validates transitions against a
// configured transition table
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured for the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, moving to the first target whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// Destination reports where the trigger would lead without firing it
	Destination(ctx context.Context, trigger Trigger) (State, error)

	// PermittedTriggers returns the triggers configured for the current state
	PermittedTriggers() []Trigger
}
