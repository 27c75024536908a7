package port

import (
	"context"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// ReportFilter narrows a report listing. Zero values do not filter.
type ReportFilter struct {
	SubmitterID  string
	Statuses     []workflow.State
	ExcludeDraft bool
	// ExcludeSubmitterID drops reports filed by this actor
	ExcludeSubmitterID string
	// ActedBy keeps reports whose approval history contains this actor
	ActedBy string
}

// ReportRepository defines persistence operations for ExpenseReport aggregates. Items and
// approval history are loaded and saved with their report.
type ReportRepository interface {
	// Create stores a new report and sets its ID and Version
	Create(ctx context.Context, report *entity.ExpenseReport) error

	// GetByID loads a report with items and approvals. Missing reports yield workflow.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*entity.ExpenseReport, error)

	// List returns every report matching the filter, ordered by id
	List(ctx context.Context, filter ReportFilter) ([]*entity.ExpenseReport, error)

	// CompareAndSwap persists the report only if the stored row still has expectedStatus and
	// expectedVersion. On success report.Version is incremented. A lost race yields
	// workflow.ErrStaleState.
	CompareAndSwap(ctx context.Context, report *entity.ExpenseReport, expectedStatus workflow.State, expectedVersion int64) error

	// Delete removes a Draft report at expectedVersion, returning workflow.ErrStaleState otherwise
	Delete(ctx context.Context, id int64, expectedVersion int64) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
