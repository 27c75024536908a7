package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/domain/access"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/event"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Logger interface for service logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ReportInput is the submitter-editable content of a report
type ReportInput struct {
	Title       string
	Description string
	ReportType  entity.ReportType
	FacultyID   string
	Items       []entity.ExpenseItem
}

// ReportService manages the submitter side of expense reports and forwards approver
// decisions to the workflow engine
type ReportService interface {
	CreateDraft(ctx context.Context, actor access.Actor, input ReportInput) (*entity.ExpenseReport, error)
	UpdateDraft(ctx context.Context, actor access.Actor, id int64, input ReportInput) (*entity.ExpenseReport, error)
	Submit(ctx context.Context, actor access.Actor, id int64) (*entity.ExpenseReport, error)
	Reopen(ctx context.Context, actor access.Actor, id int64) (*entity.ExpenseReport, error)
	Delete(ctx context.Context, actor access.Actor, id int64) error
	Get(ctx context.Context, actor access.Actor, id int64) (*entity.ExpenseReport, error)
	Decide(ctx context.Context, actor access.Actor, id int64, action domainwf.Action, payload workflow.TransitionPayload) (*entity.ExpenseReport, error)
	Workflow(ctx context.Context, actor access.Actor, id int64) (*WorkflowView, error)
}

// StageView is one step of a report's approval sequence as seen by a caller
type StageView struct {
	Stage  domainwf.Stage `json:"stage"`
	Role   domainwf.Role  `json:"role"`
	Status string         `json:"status"`
}

// Stage progress values used in StageView.Status
const (
	StageDone     = "approved"
	StageCurrent  = "pending"
	StageUpcoming = "upcoming"
)

// WorkflowView summarises where a report is in its approval sequence
type WorkflowView struct {
	ReportID         int64             `json:"reportId"`
	Status           domainwf.State    `json:"status"`
	FundType         domainwf.FundType `json:"fundType,omitempty"`
	Stages           []StageView       `json:"stages"`
	NextStage        domainwf.Stage    `json:"nextStage,omitempty"`
	NextRole         domainwf.Role     `json:"nextRole,omitempty"`
	PermittedActions []domainwf.Action `json:"permittedActions"`
}

type reportServiceImpl struct {
	reportRepo port.ReportRepository
	txManager  port.TransactionManager
	engine     workflow.WorkflowEngine
	rates      entity.RateTable
	storage    port.FileStorage
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// ReportServiceOption configures the report service
type ReportServiceOption func(*reportServiceImpl)

// WithReportDispatcher publishes lifecycle events that are not status changes
func WithReportDispatcher(d dispatcher.Dispatcher) ReportServiceOption {
	return func(s *reportServiceImpl) {
		s.dispatcher = d
	}
}

// WithReceiptCleanup removes stored receipts when a draft is deleted
func WithReceiptCleanup(storage port.FileStorage) ReportServiceOption {
	return func(s *reportServiceImpl) {
		s.storage = storage
	}
}

// WithReportClock overrides the service time source
func WithReportClock(now func() time.Time) ReportServiceOption {
	return func(s *reportServiceImpl) {
		s.now = now
	}
}

// NewReportService creates a new ReportService
func NewReportService(
	reportRepo port.ReportRepository,
	txManager port.TransactionManager,
	engine workflow.WorkflowEngine,
	rates entity.RateTable,
	logger Logger,
	opts ...ReportServiceOption,
) ReportService {
	s := &reportServiceImpl{
		reportRepo: reportRepo,
		txManager:  txManager,
		engine:     engine,
		rates:      rates,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDraft stores a new Draft owned by the actor
func (s *reportServiceImpl) CreateDraft(ctx context.Context, actor access.Actor, input ReportInput) (*entity.ExpenseReport, error) {
	if !actor.Role.CanSubmit() {
		return nil, fmt.Errorf("%w: %s cannot submit expense reports", domainwf.ErrForbidden, actor.Role)
	}

	now := s.now().UTC()
	report := &entity.ExpenseReport{
		SubmitterID:    actor.ID,
		SubmitterRole:  actor.Role,
		SubmitterName:  actor.Name,
		SubmitterEmail: actor.Email,
		Status:         domainwf.StateDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.apply(report, input); err != nil {
		return nil, err
	}

	if err := s.reportRepo.Create(ctx, report); err != nil {
		s.logger.Error("Failed to create report", "error", err, "submitter_id", actor.ID)
		return nil, fmt.Errorf("create report: %w", err)
	}

	s.logger.Info("Draft created", "report_id", report.ID, "submitter_id", actor.ID, "items", len(report.Items))
	s.publish(ctx, event.TypeReportCreated, report, actor)
	return report, nil
}

// UpdateDraft replaces the content of a Draft
func (s *reportServiceImpl) UpdateDraft(ctx context.Context, actor access.Actor, id int64, input ReportInput) (*entity.ExpenseReport, error) {
	report, err := s.ownedDraft(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updated := report.Clone()
	if err := s.apply(updated, input); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now().UTC()

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.reportRepo.CompareAndSwap(txCtx, updated, report.Status, report.Version)
	})
	if err != nil {
		s.logger.Error("Failed to update draft", "error", err, "report_id", id)
		return nil, err
	}

	s.logger.Info("Draft updated", "report_id", id, "items", len(updated.Items), "total", updated.TotalAmount.String())
	return updated, nil
}

// Submit moves a Draft into the approval chain
func (s *reportServiceImpl) Submit(ctx context.Context, actor access.Actor, id int64) (*entity.ExpenseReport, error) {
	return s.engine.Submit(ctx, id, actor)
}

// Reopen pulls a Submitted report without live approvals back to Draft
func (s *reportServiceImpl) Reopen(ctx context.Context, actor access.Actor, id int64) (*entity.ExpenseReport, error) {
	return s.engine.Reopen(ctx, id, actor)
}

// Decide applies an approver decision
func (s *reportServiceImpl) Decide(ctx context.Context, actor access.Actor, id int64, action domainwf.Action, payload workflow.TransitionPayload) (*entity.ExpenseReport, error) {
	return s.engine.ApplyTransition(ctx, id, actor, action, payload)
}

// Delete removes a Draft and its receipts
func (s *reportServiceImpl) Delete(ctx context.Context, actor access.Actor, id int64) error {
	report, err := s.ownedDraft(ctx, actor, id)
	if err != nil {
		return err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.reportRepo.Delete(txCtx, id, report.Version)
	})
	if err != nil {
		s.logger.Error("Failed to delete draft", "error", err, "report_id", id)
		return err
	}

	if s.storage != nil {
		for _, item := range report.Items {
			if !report.OwnsReceipt(item.ReceiptRef) {
				continue
			}
			if err := s.storage.Delete(ctx, item.ReceiptRef); err != nil {
				s.logger.Error("Failed to delete receipt", "error", err, "report_id", id, "receipt", item.ReceiptRef)
			}
		}
	}

	s.logger.Info("Draft deleted", "report_id", id, "submitter_id", actor.ID)
	s.publish(ctx, event.TypeReportDeleted, report, actor)
	return nil
}

// Get returns the report if the actor may see it
func (s *reportServiceImpl) Get(ctx context.Context, actor access.Actor, id int64) (*entity.ExpenseReport, error) {
	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeView(actor, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Workflow describes the report's approval sequence and what the actor may do next
func (s *reportServiceImpl) Workflow(ctx context.Context, actor access.Actor, id int64) (*WorkflowView, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	seq, err := report.Stages()
	if err != nil {
		return nil, err
	}

	view := &WorkflowView{
		ReportID:         report.ID,
		Status:           report.Status,
		FundType:         report.FundType,
		PermittedActions: s.engine.PermittedActions(actor, report),
	}
	if view.PermittedActions == nil {
		view.PermittedActions = []domainwf.Action{}
	}

	next, hasNext := report.NextStage()
	if hasNext {
		view.NextStage = next
		view.NextRole = next.Owner()
	}

	approved := make(map[domainwf.Stage]bool)
	for _, a := range report.ActiveApprovals() {
		if a.Action == domainwf.ActionApprove {
			approved[a.Stage] = true
		}
	}
	for _, stage := range seq {
		status := StageUpcoming
		switch {
		case approved[stage]:
			status = StageDone
		case hasNext && stage == next:
			status = StageCurrent
		}
		view.Stages = append(view.Stages, StageView{Stage: stage, Role: stage.Owner(), Status: status})
	}

	return view, nil
}

func (s *reportServiceImpl) ownedDraft(ctx context.Context, actor access.Actor, id int64) (*entity.ExpenseReport, error) {
	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeOwner(actor, report); err != nil {
		return nil, err
	}
	if !report.IsDraft() {
		return nil, fmt.Errorf("%w: report %d is %s", domainwf.ErrImmutableReport, id, report.Status)
	}
	return report, nil
}

// apply validates input and copies it onto the report, recomputing the total
func (s *reportServiceImpl) apply(report *entity.ExpenseReport, input ReportInput) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", domainwf.ErrValidation)
	}
	if !input.ReportType.IsValid() {
		return fmt.Errorf("%w: unknown report type %q", domainwf.ErrValidation, input.ReportType)
	}

	items := make([]entity.ExpenseItem, len(input.Items))
	for i, item := range input.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		if !s.rates.Supports(item.Currency) {
			return fmt.Errorf("item %d: %w: unsupported currency %q", i+1, domainwf.ErrValidation, item.Currency)
		}
		if item.ReceiptRef != "" && !report.OwnsReceipt(item.ReceiptRef) {
			return fmt.Errorf("item %d: %w: receipt %q does not belong to this report", i+1, domainwf.ErrValidation, item.ReceiptRef)
		}
		item.ID = int64(i + 1)
		item.Currency = strings.ToUpper(strings.TrimSpace(item.Currency))
		item.Date = item.Date.UTC()
		items[i] = item
	}

	report.Title = title
	report.Description = strings.TrimSpace(input.Description)
	report.ReportType = input.ReportType
	report.Items = items
	report.FacultyID = ""
	if report.SubmitterRole != domainwf.RoleFaculty {
		report.FacultyID = strings.TrimSpace(input.FacultyID)
	}

	return report.RecomputeTotal(s.rates)
}

func (s *reportServiceImpl) publish(ctx context.Context, t event.Type, report *entity.ExpenseReport, actor access.Actor) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(t, report.ID, actor.ID, map[string]interface{}{
		event.KeyTitle:       report.Title,
		event.KeyToStatus:    report.Status.String(),
		event.KeySubmitterID: report.SubmitterID,
	}))
}
