package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/access"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// View names a dashboard listing
type View string

const (
	ViewPending   View = "pending"
	ViewReviewed  View = "reviewed"
	ViewAll       View = "all"
	ViewProcessed View = "processed"
	ViewDrafts    View = "drafts"
	ViewMine      View = "mine"
)

// ParseView converts a query parameter into a View
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewPending, ViewReviewed, ViewAll, ViewProcessed, ViewDrafts, ViewMine:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown view %q", domainwf.ErrValidation, s)
	}
}

// QueryService answers dashboard listings. Every view is filtered through the access guard.
type QueryService interface {
	ListFor(ctx context.Context, actor access.Actor, view View) ([]*entity.ExpenseReport, error)
}

type queryServiceImpl struct {
	reportRepo port.ReportRepository
	logger     Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(reportRepo port.ReportRepository, logger Logger) QueryService {
	return &queryServiceImpl{
		reportRepo: reportRepo,
		logger:     logger,
	}
}

// ListFor returns the reports in the actor's view, ordered for that view
func (s *queryServiceImpl) ListFor(ctx context.Context, actor access.Actor, view View) ([]*entity.ExpenseReport, error) {
	var (
		filter port.ReportFilter
		keep   func(*entity.ExpenseReport) bool
		order  func([]*entity.ExpenseReport)
	)

	switch view {
	case ViewPending:
		stage, ok := domainwf.StageForRole(actor.Role)
		if !ok {
			s.logger.Info("Listed reports", "view", view, "actor_id", actor.ID, "role", actor.Role, "count", 0)
			return []*entity.ExpenseReport{}, nil
		}
		filter = port.ReportFilter{Statuses: domainwf.PendingStates(stage), ExcludeSubmitterID: actor.ID}
		keep = func(r *entity.ExpenseReport) bool { return access.CanAct(actor, r) }
		order = sortBySubmissionAsc
	case ViewReviewed:
		filter = port.ReportFilter{ActedBy: actor.ID}
		keep = func(r *entity.ExpenseReport) bool { return r.HasActed(actor.ID) }
		order = func(reports []*entity.ExpenseReport) { sortByLastActionDesc(reports, actor.ID) }
	case ViewAll:
		if !access.CanListAll(actor.Role) {
			return nil, fmt.Errorf("%w: %s cannot list all reports", domainwf.ErrForbidden, actor.Role)
		}
		filter = port.ReportFilter{ExcludeDraft: true}
		order = entity.SortByCreatedDesc
	case ViewProcessed:
		filter = port.ReportFilter{Statuses: []domainwf.State{domainwf.StateCompleted, domainwf.StateRejected}}
		keep = func(r *entity.ExpenseReport) bool { return access.CanView(actor, r) }
		order = sortByUpdatedDesc
	case ViewDrafts:
		filter = port.ReportFilter{SubmitterID: actor.ID, Statuses: []domainwf.State{domainwf.StateDraft}}
		order = entity.SortByCreatedDesc
	case ViewMine:
		filter = port.ReportFilter{SubmitterID: actor.ID}
		order = entity.SortByCreatedDesc
	default:
		return nil, fmt.Errorf("%w: unknown view %q", domainwf.ErrValidation, view)
	}

	reports, err := s.reportRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list reports", "error", err, "view", view, "actor_id", actor.ID)
		return nil, fmt.Errorf("list reports: %w", err)
	}

	out := make([]*entity.ExpenseReport, 0, len(reports))
	for _, r := range reports {
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	order(out)

	s.logger.Info("Listed reports", "view", view, "actor_id", actor.ID, "role", actor.Role, "count", len(out))
	return out, nil
}

func submissionTime(r *entity.ExpenseReport) time.Time {
	if r.SubmissionDate != nil {
		return *r.SubmissionDate
	}
	return r.CreatedAt
}

func sortBySubmissionAsc(reports []*entity.ExpenseReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		a, b := submissionTime(reports[i]), submissionTime(reports[j])
		if !a.Equal(b) {
			return a.Before(b)
		}
		return reports[i].ID < reports[j].ID
	})
}

func sortByUpdatedDesc(reports []*entity.ExpenseReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].UpdatedAt.Equal(reports[j].UpdatedAt) {
			return reports[i].UpdatedAt.After(reports[j].UpdatedAt)
		}
		return reports[i].ID < reports[j].ID
	})
}

func sortByLastActionDesc(reports []*entity.ExpenseReport, actorID string) {
	sort.SliceStable(reports, func(i, j int) bool {
		a, _ := reports[i].LastActionBy(actorID)
		b, _ := reports[j].LastActionBy(actorID)
		if !a.Equal(b) {
			return a.After(b)
		}
		return reports[i].ID < reports[j].ID
	})
}
