package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
)

// ReportRepository implements port.ReportRepository on SQLite. A report is stored across
// expense_reports, expense_items and approval_history and always written in one transaction.
type ReportRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlite.DB, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

const reportColumns = `
	id, submitter_id, submitter_role, submitter_name, submitter_email, faculty_id,
	title, description, report_type, fund_type, project_id,
	total_amount, currency, status, submission_date, created_at, updated_at, version
`

func (r *ReportRepository) exec(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db.DB)
}

// Create stores a new report with its items and history
func (r *ReportRepository) Create(ctx context.Context, report *entity.ExpenseReport) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO expense_reports (
				submitter_id, submitter_role, submitter_name, submitter_email, faculty_id,
				title, description, report_type, fund_type, project_id,
				total_amount, currency, status, submission_date, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		`

		result, err := r.exec(ctx).ExecContext(ctx, query,
			report.SubmitterID,
			string(report.SubmitterRole),
			report.SubmitterName,
			report.SubmitterEmail,
			report.FacultyID,
			report.Title,
			report.Description,
			string(report.ReportType),
			string(report.FundType),
			report.ProjectID,
			report.TotalAmount.String(),
			report.Currency,
			string(report.Status),
			nullTime(report),
			report.CreatedAt.UTC(),
			report.UpdatedAt.UTC(),
		)
		if err != nil {
			r.logger.Error("Failed to create report", zap.Error(err))
			return fmt.Errorf("failed to create report: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		report.ID = id
		report.Version = 1

		if err := r.replaceItems(ctx, report); err != nil {
			return err
		}
		return r.saveApprovals(ctx, report)
	})
}

// GetByID retrieves a report with its items and history
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*entity.ExpenseReport, error) {
	query := `SELECT ` + reportColumns + ` FROM expense_reports WHERE id = ?`

	report, err := scanReport(r.exec(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		// bare sentinel: a missing report must read the same as a hidden one
		r.logger.Debug("Report not found", zap.Int64("id", id))
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get report by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if err := r.loadChildren(ctx, []*entity.ExpenseReport{report}); err != nil {
		return nil, err
	}
	return report, nil
}

// List returns the reports matching filter ordered by id
func (r *ReportRepository) List(ctx context.Context, filter port.ReportFilter) ([]*entity.ExpenseReport, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.SubmitterID != "" {
		where = append(where, "submitter_id = ?")
		args = append(args, filter.SubmitterID)
	}
	if filter.ExcludeSubmitterID != "" {
		where = append(where, "submitter_id <> ?")
		args = append(args, filter.ExcludeSubmitterID)
	}
	if filter.ExcludeDraft {
		where = append(where, "status <> ?")
		args = append(args, string(workflow.StateDraft))
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if filter.ActedBy != "" {
		where = append(where, "id IN (SELECT report_id FROM approval_history WHERE approved_by_id = ?)")
		args = append(args, filter.ActedBy)
	}

	query := `SELECT ` + reportColumns + ` FROM expense_reports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*entity.ExpenseReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.loadChildren(ctx, reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// CompareAndSwap writes the report if the stored status and version still match
func (r *ReportRepository) CompareAndSwap(ctx context.Context, report *entity.ExpenseReport, expectedStatus workflow.State, expectedVersion int64) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			UPDATE expense_reports SET
				faculty_id = ?, title = ?, description = ?, report_type = ?,
				fund_type = ?, project_id = ?, total_amount = ?, currency = ?,
				status = ?, submission_date = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND status = ? AND version = ?
		`

		result, err := r.exec(ctx).ExecContext(ctx, query,
			report.FacultyID,
			report.Title,
			report.Description,
			string(report.ReportType),
			string(report.FundType),
			report.ProjectID,
			report.TotalAmount.String(),
			report.Currency,
			string(report.Status),
			nullTime(report),
			report.UpdatedAt.UTC(),
			report.ID,
			string(expectedStatus),
			expectedVersion,
		)
		if err != nil {
			r.logger.Error("Failed to update report", zap.Int64("id", report.ID), zap.Error(err))
			return fmt.Errorf("failed to update report: %w", err)
		}

		if err := r.checkSwapped(ctx, result, report.ID); err != nil {
			return err
		}

		if err := r.replaceItems(ctx, report); err != nil {
			return err
		}
		if err := r.saveApprovals(ctx, report); err != nil {
			return err
		}

		report.Version = expectedVersion + 1
		return nil
	})
}

// Delete removes a Draft report at the expected version
func (r *ReportRepository) Delete(ctx context.Context, id int64, expectedVersion int64) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		result, err := r.exec(ctx).ExecContext(ctx,
			`DELETE FROM expense_reports WHERE id = ? AND version = ? AND status = ?`,
			id, expectedVersion, string(workflow.StateDraft),
		)
		if err != nil {
			r.logger.Error("Failed to delete report", zap.Int64("id", id), zap.Error(err))
			return fmt.Errorf("failed to delete report: %w", err)
		}
		if err := r.checkSwapped(ctx, result, id); err != nil {
			return err
		}

		for _, q := range []string{
			`DELETE FROM expense_items WHERE report_id = ?`,
			`DELETE FROM approval_history WHERE report_id = ?`,
		} {
			if _, err := r.exec(ctx).ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("failed to delete report children: %w", err)
			}
		}
		return nil
	})
}

// checkSwapped turns a zero-row write into ErrStaleState, or ErrNotFound when the row is gone
func (r *ReportRepository) checkSwapped(ctx context.Context, result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = r.exec(ctx).QueryRowContext(ctx, `SELECT 1 FROM expense_reports WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check report: %w", err)
	}

	r.logger.Info("Lost compare-and-swap", zap.Int64("id", id))
	return fmt.Errorf("%w: report %d", workflow.ErrStaleState, id)
}

func (r *ReportRepository) replaceItems(ctx context.Context, report *entity.ExpenseReport) error {
	if _, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM expense_items WHERE report_id = ?`, report.ID); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}

	query := `
		INSERT INTO expense_items (
			report_id, item_no, category, description, amount, currency,
			expense_date, payment_method, receipt_ref
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, item := range report.Items {
		no := item.ID
		if no == 0 {
			no = int64(i + 1)
		}
		_, err := r.exec(ctx).ExecContext(ctx, query,
			report.ID,
			no,
			string(item.Category),
			item.Description,
			item.Amount.String(),
			item.Currency,
			item.Date.UTC(),
			string(item.PaymentMethod),
			item.ReceiptRef,
		)
		if err != nil {
			r.logger.Error("Failed to insert item", zap.Int64("report_id", report.ID), zap.Error(err))
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}
	return nil
}

// saveApprovals appends new history rows. Existing rows only ever change their superseded flag.
func (r *ReportRepository) saveApprovals(ctx context.Context, report *entity.ExpenseReport) error {
	query := `
		INSERT INTO approval_history (
			report_id, seq, stage, approved, action, approved_by_id, decided_at, remarks, superseded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (report_id, seq) DO UPDATE SET superseded = excluded.superseded
	`
	for i, a := range report.Approvals {
		var approved sql.NullBool
		if a.Approved != nil {
			approved = sql.NullBool{Bool: *a.Approved, Valid: true}
		}
		_, err := r.exec(ctx).ExecContext(ctx, query,
			report.ID,
			i,
			string(a.Stage),
			approved,
			string(a.Action),
			a.ApprovedByID,
			a.Date.UTC(),
			a.Remarks,
			a.Superseded,
		)
		if err != nil {
			r.logger.Error("Failed to save approval", zap.Int64("report_id", report.ID), zap.Error(err))
			return fmt.Errorf("failed to save approval: %w", err)
		}
	}
	return nil
}

// loadChildren fills Items and Approvals for every report with two queries
// childBatchSize bounds the ids bound into one IN (...) list, below SQLite's variable limit
var childBatchSize = 500

func (r *ReportRepository) loadChildren(ctx context.Context, reports []*entity.ExpenseReport) error {
	if len(reports) == 0 {
		return nil
	}

	byID := make(map[int64]*entity.ExpenseReport, len(reports))
	for _, report := range reports {
		report.Items = []entity.ExpenseItem{}
		report.Approvals = []entity.ApprovalRecord{}
		byID[report.ID] = report
	}

	for start := 0; start < len(reports); start += childBatchSize {
		end := start + childBatchSize
		if end > len(reports) {
			end = len(reports)
		}
		batch := reports[start:end]
		args := make([]interface{}, 0, len(batch))
		for _, report := range batch {
			args = append(args, report.ID)
		}
		in := placeholders(len(batch))

		if err := r.loadItems(ctx, byID, in, args); err != nil {
			return err
		}
		if err := r.loadHistory(ctx, byID, in, args); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReportRepository) loadItems(ctx context.Context, byID map[int64]*entity.ExpenseReport, in string, args []interface{}) error {
	rows, err := r.exec(ctx).QueryContext(ctx, `
		SELECT report_id, item_no, category, description, amount, currency,
			expense_date, payment_method, receipt_ref
		FROM expense_items
		WHERE report_id IN (`+in+`)
		ORDER BY report_id, item_no
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reportID int64
			item     entity.ExpenseItem
		)
		if err := rows.Scan(
			&reportID,
			&item.ID,
			&item.Category,
			&item.Description,
			&item.Amount,
			&item.Currency,
			&item.Date,
			&item.PaymentMethod,
			&item.ReceiptRef,
		); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		item.Date = item.Date.UTC()
		byID[reportID].Items = append(byID[reportID].Items, item)
	}
	return rows.Err()
}

func (r *ReportRepository) loadHistory(ctx context.Context, byID map[int64]*entity.ExpenseReport, in string, args []interface{}) error {
	rows, err := r.exec(ctx).QueryContext(ctx, `
		SELECT id, report_id, stage, approved, action, approved_by_id, decided_at, remarks, superseded
		FROM approval_history
		WHERE report_id IN (`+in+`)
		ORDER BY report_id, seq
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to load approval history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reportID int64
			a        entity.ApprovalRecord
			approved sql.NullBool
		)
		if err := rows.Scan(
			&a.ID,
			&reportID,
			&a.Stage,
			&approved,
			&a.Action,
			&a.ApprovedByID,
			&a.Date,
			&a.Remarks,
			&a.Superseded,
		); err != nil {
			return fmt.Errorf("failed to scan approval: %w", err)
		}
		if approved.Valid {
			v := approved.Bool
			a.Approved = &v
		}
		a.Date = a.Date.UTC()
		byID[reportID].Approvals = append(byID[reportID].Approvals, a)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*entity.ExpenseReport, error) {
	var (
		report     entity.ExpenseReport
		submission sql.NullTime
	)
	err := row.Scan(
		&report.ID,
		&report.SubmitterID,
		&report.SubmitterRole,
		&report.SubmitterName,
		&report.SubmitterEmail,
		&report.FacultyID,
		&report.Title,
		&report.Description,
		&report.ReportType,
		&report.FundType,
		&report.ProjectID,
		&report.TotalAmount,
		&report.Currency,
		&report.Status,
		&submission,
		&report.CreatedAt,
		&report.UpdatedAt,
		&report.Version,
	)
	if err != nil {
		return nil, err
	}

	if !report.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q on report %d", workflow.ErrInvalidState, report.Status, report.ID)
	}
	if submission.Valid {
		t := submission.Time.UTC()
		report.SubmissionDate = &t
	}
	report.CreatedAt = report.CreatedAt.UTC()
	report.UpdatedAt = report.UpdatedAt.UTC()
	return &report, nil
}

func nullTime(report *entity.ExpenseReport) sql.NullTime {
	if report.SubmissionDate == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: report.SubmissionDate.UTC(), Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ReceiptRefs returns every receipt ref still attached to an expense item
func (r *ReportRepository) ReceiptRefs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.exec(ctx).QueryContext(ctx,
		`SELECT DISTINCT receipt_ref FROM expense_items WHERE receipt_ref <> ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipt refs: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]struct{})
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan receipt ref: %w", err)
		}
		refs[ref] = struct{}{}
	}
	return refs, rows.Err()
}
