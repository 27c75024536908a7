package workflow

// State represents the lifecycle status of an expense report
type State string

const (
	StateDraft               State = "Draft"
	StateSubmitted           State = "Submitted"
	StateFacultyApproved     State = "Faculty Approved"
	StateSchoolChairApproved State = "School Chair Approved"
	StateDeanSRICApproved    State = "Dean SRIC Approved"
	StateDirectorApproved    State = "Director Approved"
	StateAuditApproved       State = "Audit Approved"
	StateFinanceApproved     State = "Finance Approved"
	StateCompleted           State = "Completed"
	StateRejected            State = "Rejected"
)

var validStates = map[State]bool{
	StateDraft:               true,
	StateSubmitted:           true,
	StateFacultyApproved:     true,
	StateSchoolChairApproved: true,
	StateDeanSRICApproved:    true,
	StateDirectorApproved:    true,
	StateAuditApproved:       true,
	StateFinanceApproved:     true,
	StateCompleted:           true,
	StateRejected:            true,
}

var terminalStates = map[State]bool{
	StateRejected:  true,
	StateCompleted: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsActionable returns true if an approver may act on a report in this state
func (s State) IsActionable() bool {
	return s.IsValid() && !s.IsTerminal() && s != StateDraft
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState converts a persisted status string into a State
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", ErrInvalidState
	}
	return state, nil
}
