package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/access"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/event"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	reportRepo port.ReportRepository
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides the time source used for history entries
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(reportRepo port.ReportRepository, txManager port.TransactionManager, opts ...EngineOption) WorkflowEngine {
	e := &engineImpl{
		reportRepo: reportRepo,
		txManager:  txManager,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engineImpl) ApplyTransition(ctx context.Context, reportID int64, actor access.Actor, action domainwf.Action, payload TransitionPayload) (*entity.ExpenseReport, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", domainwf.ErrValidation, action)
	}

	report, err := e.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeAction(actor, report); err != nil {
		return nil, err
	}

	stage, ok := report.NextStage()
	if !ok {
		return nil, fmt.Errorf("%w: no stage pending on report %d", domainwf.ErrInvalidTransition, reportID)
	}
	entry := report.FundType == ""

	remarks := strings.TrimSpace(payload.Remarks)
	if err := validatePayload(action, entry, report.FundType, remarks, payload); err != nil {
		return nil, err
	}

	updated := report.Clone()
	if action == domainwf.ActionApprove && entry {
		updated.FundType = payload.FundType
		updated.ProjectID = strings.TrimSpace(payload.ProjectID)
	}

	machine := BuildReportStateMachine(report.Status)
	routeCtx := WithRoute(ctx, Route{FundType: updated.FundType, SubmitterRole: report.SubmitterRole})
	if err := machine.Fire(routeCtx, action.Trigger()); err != nil {
		return nil, err
	}
	if action == domainwf.ActionApprove && machine.State() != stage.ApprovedState() {
		return nil, fmt.Errorf("%w: %s approval led to %s", domainwf.ErrInvalidTransition, stage, machine.State())
	}
	if machine.CanFire(domainwf.TriggerComplete) {
		if err := machine.Fire(routeCtx, domainwf.TriggerComplete); err != nil {
			return nil, err
		}
	}

	now := e.now().UTC()
	// the first decision on a Submitted report opens a new pass and closes the sendback record
	if action == domainwf.ActionSendBack || report.Status == domainwf.StateSubmitted {
		updated.SupersedeApprovals()
	}
	if action == domainwf.ActionSendBack {
		updated.FundType = ""
		updated.ProjectID = ""
	}
	updated.Approvals = append(updated.Approvals, entity.NewApprovalRecord(stage, action, actor.ID, remarks, now))
	updated.Status = machine.State()
	updated.UpdatedAt = now

	if err := e.commit(ctx, updated, report); err != nil {
		return nil, err
	}

	e.info("Report transitioned",
		"report_id", reportID,
		"actor_id", actor.ID,
		"action", action,
		"stage", stage,
		"from", report.Status,
		"to", updated.Status,
	)
	e.publish(ctx, report, updated, actor, action.String(), remarks, stage)

	return updated, nil
}

func validatePayload(action domainwf.Action, entry bool, current domainwf.FundType, remarks string, payload TransitionPayload) error {
	switch action {
	case domainwf.ActionReject, domainwf.ActionSendBack:
		if remarks == "" {
			return fmt.Errorf("%w: remarks are required to %s", domainwf.ErrValidation, action)
		}
		return nil
	}

	if !entry {
		if payload.FundType != "" && payload.FundType != current {
			return fmt.Errorf("%w: fund type is already %s", domainwf.ErrValidation, current)
		}
		return nil
	}

	if payload.FundType == "" {
		return fmt.Errorf("%w: fund type is required at the first approval", domainwf.ErrValidation)
	}
	if !payload.FundType.IsValid() {
		return fmt.Errorf("%w: %q", domainwf.ErrInvalidFundType, payload.FundType)
	}
	if payload.FundType.RequiresProject() && strings.TrimSpace(payload.ProjectID) == "" {
		return fmt.Errorf("%w: project id is required for %s", domainwf.ErrValidation, payload.FundType)
	}
	return nil
}

func (e *engineImpl) Submit(ctx context.Context, reportID int64, actor access.Actor) (*entity.ExpenseReport, error) {
	report, err := e.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeOwner(actor, report); err != nil {
		return nil, err
	}
	if len(report.Items) == 0 {
		return nil, fmt.Errorf("%w: a report needs at least one item", domainwf.ErrValidation)
	}

	machine := BuildReportStateMachine(report.Status)
	if err := machine.Fire(ctx, domainwf.TriggerSubmit); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	updated := report.Clone()
	updated.Status = machine.State()
	updated.SubmissionDate = &now
	updated.UpdatedAt = now

	if err := e.commit(ctx, updated, report); err != nil {
		return nil, err
	}

	e.info("Report submitted", "report_id", reportID, "actor_id", actor.ID)
	e.publish(ctx, report, updated, actor, "submit", "", "")
	return updated, nil
}

func (e *engineImpl) Reopen(ctx context.Context, reportID int64, actor access.Actor) (*entity.ExpenseReport, error) {
	report, err := e.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeOwner(actor, report); err != nil {
		return nil, err
	}
	for _, a := range report.ActiveApprovals() {
		if a.Action == domainwf.ActionApprove {
			return nil, fmt.Errorf("%w: report %d already has approvals", domainwf.ErrInvalidTransition, reportID)
		}
	}

	machine := BuildReportStateMachine(report.Status)
	if err := machine.Fire(ctx, domainwf.TriggerReopen); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	updated := report.Clone()
	updated.Status = machine.State()
	updated.SubmissionDate = nil
	updated.UpdatedAt = now

	if err := e.commit(ctx, updated, report); err != nil {
		return nil, err
	}

	e.info("Report reopened", "report_id", reportID, "actor_id", actor.ID)
	e.publish(ctx, report, updated, actor, "reopen", "", "")
	return updated, nil
}

func (e *engineImpl) PermittedActions(actor access.Actor, report *entity.ExpenseReport) []domainwf.Action {
	if !access.CanAct(actor, report) {
		return nil
	}
	machine := BuildReportStateMachine(report.Status)
	var out []domainwf.Action
	for _, a := range []domainwf.Action{domainwf.ActionApprove, domainwf.ActionReject, domainwf.ActionSendBack} {
		if machine.CanFire(a.Trigger()) {
			out = append(out, a)
		}
	}
	return out
}

// commit persists updated only if the stored report still matches what was read
func (e *engineImpl) commit(ctx context.Context, updated, read *entity.ExpenseReport) error {
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.reportRepo.CompareAndSwap(txCtx, updated, read.Status, read.Version)
	})
	if err != nil {
		e.error("Failed to commit transition",
			"report_id", read.ID,
			"from", read.Status,
			"to", updated.Status,
			"error", err,
		)
		return err
	}
	return nil
}

func (e *engineImpl) publish(ctx context.Context, before, after *entity.ExpenseReport, actor access.Actor, action, remarks string, stage domainwf.Stage) {
	if e.dispatcher == nil {
		return
	}
	evt := event.NewEvent(event.TypeStatusChanged, after.ID, actor.ID, map[string]interface{}{
		event.KeyFromStatus:  before.Status.String(),
		event.KeyToStatus:    after.Status.String(),
		event.KeyAction:      action,
		event.KeyStage:       stage.String(),
		event.KeyRemarks:     remarks,
		event.KeyTitle:       after.Title,
		event.KeySubmitter:   after.SubmitterEmail,
		event.KeySubmitterID: after.SubmitterID,
	})
	// notifications must never hold up or roll back the transition
	e.dispatcher.DispatchAsync(ctx, evt)
}

func (e *engineImpl) info(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, kv...)
	}
}

func (e *engineImpl) error(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, kv...)
	}
}
