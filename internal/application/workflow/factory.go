package workflow

import (
	"context"

	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

type routeKey struct{}

// Route is what the approve guards route on: the fund type in effect for the transition and
// the role the report was submitted under
type Route struct {
	FundType      domainwf.FundType
	SubmitterRole domainwf.Role
}

// WithRoute attaches the routing inputs to the context passed to Fire
func WithRoute(ctx context.Context, r Route) context.Context {
	return context.WithValue(ctx, routeKey{}, r)
}

func routeFrom(ctx context.Context) (Route, bool) {
	r, ok := ctx.Value(routeKey{}).(Route)
	return r, ok
}

func routeGuard(fund domainwf.FundType, facultySubmitter bool) domainwf.GuardFunc {
	return func(ctx context.Context) bool {
		r, ok := routeFrom(ctx)
		if !ok {
			return false
		}
		return r.FundType == fund && (r.SubmitterRole == domainwf.RoleFaculty) == facultySubmitter
	}
}

// BuildReportStateMachine creates a state machine configured for the expense report workflow.
// APPROVE targets are generated from the fund resolver, one guarded transition per
// (fund type, submitter kind), so the table cannot drift from ResolveStages.
func BuildReportStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StateSubmitted)

	builder.Configure(domainwf.StateSubmitted).
		Permit(domainwf.TriggerReopen, domainwf.StateDraft)

	for _, fund := range domainwf.FundTypes() {
		for _, facultySubmitter := range []bool{false, true} {
			role := domainwf.RoleStudent
			if facultySubmitter {
				role = domainwf.RoleFaculty
			}
			seq, err := domainwf.ResolveFor(fund, role)
			if err != nil {
				panic(err)
			}
			from := domainwf.StateSubmitted
			for _, stage := range seq {
				builder.Configure(from).
					PermitIf(domainwf.TriggerApprove, stage.ApprovedState(), routeGuard(fund, facultySubmitter))
				from = stage.ApprovedState()
			}
		}
	}

	// every non-terminal status after submission can be rejected or sent back
	for _, state := range []domainwf.State{
		domainwf.StateSubmitted,
		domainwf.StateFacultyApproved,
		domainwf.StateSchoolChairApproved,
		domainwf.StateDeanSRICApproved,
		domainwf.StateDirectorApproved,
		domainwf.StateAuditApproved,
	} {
		builder.Configure(state).
			Permit(domainwf.TriggerReject, domainwf.StateRejected).
			Permit(domainwf.TriggerSendBack, domainwf.StateSubmitted)
	}

	builder.Configure(domainwf.StateFinanceApproved).
		Permit(domainwf.TriggerComplete, domainwf.StateCompleted)

	// REJECTED and COMPLETED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}
