package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSubmit   Trigger = "SUBMIT"
	TriggerReopen   Trigger = "REOPEN"
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerSendBack Trigger = "SENDBACK"
	TriggerComplete Trigger = "COMPLETE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// Action is an approver decision on the current stage
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionSendBack Action = "sendback"
)

// IsValid reports whether the action is one of the approver decisions
func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionSendBack:
		return true
	default:
		return false
	}
}

// Trigger maps an approver decision to its state machine trigger
func (a Action) Trigger() Trigger {
	switch a {
	case ActionApprove:
		return TriggerApprove
	case ActionReject:
		return TriggerReject
	case ActionSendBack:
		return TriggerSendBack
	default:
		return ""
	}
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}
