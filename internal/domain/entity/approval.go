package entity

import (
	"time"

	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// ApprovalRecord is one stage decision in a report's approval history
type ApprovalRecord struct {
	ID           int64           `json:"-"`
	Stage        workflow.Stage  `json:"stage"`
	Approved     *bool           `json:"approved"`
	Action       workflow.Action `json:"action"`
	ApprovedByID string          `json:"approvedById"`
	Date         time.Time       `json:"date"`
	Remarks      string          `json:"remarks"`
	// Superseded is set on every earlier record when the report is sent back, and on the
	// sendback record once the next pass decides
	Superseded bool `json:"superseded,omitempty"`
}

// NewApprovalRecord builds the history entry for an approver decision
func NewApprovalRecord(stage workflow.Stage, action workflow.Action, actorID, remarks string, at time.Time) ApprovalRecord {
	approved := action == workflow.ActionApprove
	return ApprovalRecord{
		Stage:        stage,
		Approved:     &approved,
		Action:       action,
		ApprovedByID: actorID,
		Date:         at.UTC(),
		Remarks:      remarks,
	}
}
