package workflow

import (
	"context"

	"github.com/garyjia/expense-workflow/internal/domain/access"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// TransitionPayload carries the approver input that accompanies an action
type TransitionPayload struct {
	Remarks   string
	FundType  domainwf.FundType
	ProjectID string
}

// WorkflowEngine owns every status change of an expense report. Each call reads the report,
// validates the request against it, and commits with a compare-and-swap on status and version.
type WorkflowEngine interface {
	// ApplyTransition applies an approver decision to the report's current stage
	ApplyTransition(ctx context.Context, reportID int64, actor access.Actor, action domainwf.Action, payload TransitionPayload) (*entity.ExpenseReport, error)

	// Submit moves the submitter's Draft into the approval chain
	Submit(ctx context.Context, reportID int64, actor access.Actor) (*entity.ExpenseReport, error)

	// Reopen returns a Submitted report without live approvals to Draft
	Reopen(ctx context.Context, reportID int64, actor access.Actor) (*entity.ExpenseReport, error)

	// PermittedActions lists the decisions the actor could make on the report right now
	PermittedActions(actor access.Actor, report *entity.ExpenseReport) []domainwf.Action
}
