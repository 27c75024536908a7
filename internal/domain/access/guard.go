// Package access centralises who may act on and who may see an expense report. Every
// handler and query goes through these functions instead of checking roles itself.
package access

import (
	"fmt"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Actor is the authenticated caller
type Actor struct {
	ID    string
	Role  workflow.Role
	Name  string
	Email string
}

// CanAct reports whether the actor owns the stage that has to decide the report next.
// Submitters never decide their own reports, and a report routed to a named faculty member
// can only be decided at the Faculty stage by that member.
func CanAct(actor Actor, report *entity.ExpenseReport) bool {
	next, ok := report.NextStage()
	if !ok {
		return false
	}
	if next.Owner() != actor.Role {
		return false
	}
	if actor.ID == report.SubmitterID {
		return false
	}
	if next == workflow.StageFaculty && report.FacultyID != "" && report.FacultyID != actor.ID {
		return false
	}
	return true
}

// CanView reports whether the actor may see the report at all
func CanView(actor Actor, report *entity.ExpenseReport) bool {
	if actor.ID != "" && actor.ID == report.SubmitterID {
		return true
	}
	if actor.Role == workflow.RoleAdmin {
		return true
	}
	if report.IsDraft() {
		return false
	}
	if report.HasActed(actor.ID) {
		return true
	}
	seq, err := report.Stages()
	if err != nil {
		return false
	}
	for _, s := range seq {
		if s.Owner() == actor.Role {
			return true
		}
	}
	return false
}

// AuthorizeView returns ErrNotFound when the actor may not see the report, so callers cannot
// distinguish a hidden report from a missing one
func AuthorizeView(actor Actor, report *entity.ExpenseReport) error {
	if report == nil || !CanView(actor, report) {
		return workflow.ErrNotFound
	}
	return nil
}

// AuthorizeAction checks that the actor may decide the report in its current status
func AuthorizeAction(actor Actor, report *entity.ExpenseReport) error {
	if err := AuthorizeView(actor, report); err != nil {
		return err
	}
	if report.Status.IsTerminal() {
		return fmt.Errorf("%w: report %d is %s", workflow.ErrTerminalState, report.ID, report.Status)
	}
	if report.IsDraft() {
		return fmt.Errorf("%w: report %d has not been submitted", workflow.ErrInvalidTransition, report.ID)
	}
	if !CanAct(actor, report) {
		return fmt.Errorf("%w: %s cannot act on a report in status %s", workflow.ErrForbidden, actor.Role, report.Status)
	}
	return nil
}

// AuthorizeOwner checks that the actor submitted the report. Non-owners get ErrNotFound
// unless they may view it, in which case ErrForbidden.
func AuthorizeOwner(actor Actor, report *entity.ExpenseReport) error {
	if err := AuthorizeView(actor, report); err != nil {
		return err
	}
	if report.SubmitterID != actor.ID {
		return fmt.Errorf("%w: only the submitter may change report %d", workflow.ErrForbidden, report.ID)
	}
	return nil
}

// CanListAll reports whether the role may use the unfiltered "all" view
func CanListAll(role workflow.Role) bool {
	switch role {
	case workflow.RoleAudit, workflow.RoleFinance, workflow.RoleAdmin:
		return true
	default:
		return false
	}
}
