package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-workflow/migrations"
	"github.com/garyjia/expense-workflow/pkg/database"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func setupRepo(t *testing.T) (*ReportRepository, *sqlite.DB) {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "reports.db"),
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))

	sdb := sqlite.NewDB(db.DB, logger)
	return NewReportRepository(sdb, logger), sdb
}

func newDraft(submitter string) *entity.ExpenseReport {
	return &entity.ExpenseReport{
		SubmitterID:    submitter,
		SubmitterRole:  workflow.RoleStudent,
		SubmitterEmail: submitter + "@example.edu",
		FacultyID:      "fac-1",
		Title:          "Conference travel",
		ReportType:     entity.ReportTypeResearch,
		Items: []entity.ExpenseItem{
			{
				Category:      entity.CategoryTravel,
				Description:   "Flight",
				Amount:        decimal.RequireFromString("12500.50"),
				Currency:      "INR",
				Date:          t0.Add(-48 * time.Hour),
				PaymentMethod: entity.PaymentCard,
				ReceiptRef:    "reports/1/a.pdf",
			},
			{
				Category:      entity.CategoryMeals,
				Amount:        decimal.RequireFromString("40"),
				Currency:      "USD",
				Date:          t0.Add(-24 * time.Hour),
				PaymentMethod: entity.PaymentCash,
			},
		},
		TotalAmount: decimal.RequireFromString("15820.50"),
		Currency:    "INR",
		Status:      workflow.StateDraft,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

func TestReportRepository_CreateAndGet(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	report := newDraft("stu-1")
	require.NoError(t, repo.Create(ctx, report))
	assert.NotZero(t, report.ID)
	assert.Equal(t, int64(1), report.Version)

	got, err := repo.GetByID(ctx, report.ID)
	require.NoError(t, err)

	assert.Equal(t, "stu-1", got.SubmitterID)
	assert.Equal(t, workflow.RoleStudent, got.SubmitterRole)
	assert.Equal(t, "fac-1", got.FacultyID)
	assert.Equal(t, workflow.StateDraft, got.Status)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("15820.50")))
	assert.Nil(t, got.SubmissionDate)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.Empty(t, got.Approvals)

	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(1), got.Items[0].ID)
	assert.Equal(t, entity.CategoryTravel, got.Items[0].Category)
	assert.True(t, got.Items[0].Amount.Equal(decimal.RequireFromString("12500.50")))
	assert.Equal(t, "reports/1/a.pdf", got.Items[0].ReceiptRef)
	assert.Equal(t, entity.PaymentCash, got.Items[1].PaymentMethod)
}

func TestReportRepository_GetByID_NotFound(t *testing.T) {
	repo, _ := setupRepo(t)

	_, err := repo.GetByID(context.Background(), 404)
	assert.Equal(t, workflow.ErrNotFound, err, "no id in the message")
}

func TestReportRepository_CompareAndSwap(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	report := newDraft("stu-1")
	require.NoError(t, repo.Create(ctx, report))

	submitted := t0.Add(time.Hour)
	next := report.Clone()
	next.Status = workflow.StateSubmitted
	next.SubmissionDate = &submitted
	next.UpdatedAt = submitted
	require.NoError(t, repo.CompareAndSwap(ctx, next, workflow.StateDraft, 1))
	assert.Equal(t, int64(2), next.Version)

	// decision with history
	decided := next.Clone()
	decided.Status = workflow.StateFacultyApproved
	decided.FundType = workflow.FundProject
	decided.ProjectID = "PRJ-7"
	decided.Approvals = append(decided.Approvals,
		entity.NewApprovalRecord(workflow.StageFaculty, workflow.ActionApprove, "fac-1", "ok", t0.Add(2*time.Hour)))
	require.NoError(t, repo.CompareAndSwap(ctx, decided, workflow.StateSubmitted, 2))

	got, err := repo.GetByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, workflow.StateFacultyApproved, got.Status)
	assert.Equal(t, workflow.FundProject, got.FundType)
	assert.Equal(t, "PRJ-7", got.ProjectID)
	require.NotNil(t, got.SubmissionDate)
	assert.True(t, got.SubmissionDate.Equal(submitted))

	require.Len(t, got.Approvals, 1)
	a := got.Approvals[0]
	assert.NotZero(t, a.ID)
	assert.Equal(t, workflow.StageFaculty, a.Stage)
	require.NotNil(t, a.Approved)
	assert.True(t, *a.Approved)
	assert.Equal(t, "fac-1", a.ApprovedByID)
	assert.Equal(t, "ok", a.Remarks)
	assert.False(t, a.Superseded)

	// stale expectations are refused and leave the row untouched
	stale := got.Clone()
	stale.Status = workflow.StateRejected
	err = repo.CompareAndSwap(ctx, stale, workflow.StateSubmitted, 2)
	assert.True(t, errors.Is(err, workflow.ErrStaleState))

	again, err := repo.GetByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFacultyApproved, again.Status)

	missing := got.Clone()
	missing.ID = 999
	err = repo.CompareAndSwap(ctx, missing, workflow.StateFacultyApproved, 3)
	assert.True(t, errors.Is(err, workflow.ErrNotFound))
}

func TestReportRepository_SupersedeKeepsHistory(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	report := newDraft("stu-1")
	report.Status = workflow.StateFacultyApproved
	report.Approvals = []entity.ApprovalRecord{
		entity.NewApprovalRecord(workflow.StageFaculty, workflow.ActionApprove, "fac-1", "", t0),
	}
	require.NoError(t, repo.Create(ctx, report))

	back := report.Clone()
	back.SupersedeApprovals()
	back.Approvals = append(back.Approvals,
		entity.NewApprovalRecord(workflow.StageSchoolChair, workflow.ActionSendBack, "chair-1", "fix receipts", t0.Add(time.Hour)))
	back.Status = workflow.StateSubmitted
	require.NoError(t, repo.CompareAndSwap(ctx, back, workflow.StateFacultyApproved, 1))

	got, err := repo.GetByID(ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, got.Approvals, 2)
	assert.True(t, got.Approvals[0].Superseded)
	assert.Equal(t, workflow.ActionSendBack, got.Approvals[1].Action)
	require.NotNil(t, got.Approvals[1].Approved)
	assert.False(t, *got.Approvals[1].Approved)
	assert.Len(t, got.ActiveApprovals(), 1)
}

func TestReportRepository_List(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	draft := newDraft("stu-1")
	require.NoError(t, repo.Create(ctx, draft))

	submitted := newDraft("stu-1")
	submitted.Status = workflow.StateSubmitted
	require.NoError(t, repo.Create(ctx, submitted))

	other := newDraft("stu-2")
	other.Status = workflow.StateFacultyApproved
	other.Approvals = []entity.ApprovalRecord{
		entity.NewApprovalRecord(workflow.StageFaculty, workflow.ActionApprove, "fac-1", "", t0),
	}
	require.NoError(t, repo.Create(ctx, other))

	ids := func(reports []*entity.ExpenseReport) []int64 {
		var out []int64
		for _, r := range reports {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter port.ReportFilter
		want   []int64
	}{
		{name: "all", filter: port.ReportFilter{}, want: []int64{draft.ID, submitted.ID, other.ID}},
		{name: "by submitter", filter: port.ReportFilter{SubmitterID: "stu-1"}, want: []int64{draft.ID, submitted.ID}},
		{name: "exclude draft", filter: port.ReportFilter{ExcludeDraft: true}, want: []int64{submitted.ID, other.ID}},
		{
			name:   "statuses",
			filter: port.ReportFilter{Statuses: []workflow.State{workflow.StateSubmitted, workflow.StateFacultyApproved}},
			want:   []int64{submitted.ID, other.ID},
		},
		{name: "acted by", filter: port.ReportFilter{ActedBy: "fac-1"}, want: []int64{other.ID}},
		{name: "no match", filter: port.ReportFilter{SubmitterID: "nobody"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
			for _, r := range got {
				assert.Len(t, r.Items, 2)
			}
		})
	}
}

func TestReportRepository_ListLoadsChildrenInBatches(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	prev := childBatchSize
	childBatchSize = 2
	t.Cleanup(func() { childBatchSize = prev })

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newDraft("stu-1")))
	}

	reports, err := repo.List(ctx, port.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 5)
	for _, r := range reports {
		assert.Len(t, r.Items, 2, "report %d", r.ID)
		assert.NotNil(t, r.Approvals, "report %d", r.ID)
	}
}

func TestReportRepository_ListExcludeSubmitter(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newDraft("stu-1")))
	other := newDraft("stu-2")
	require.NoError(t, repo.Create(ctx, other))

	reports, err := repo.List(ctx, port.ReportFilter{ExcludeSubmitterID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, other.ID, reports[0].ID)
}

func TestReportRepository_Delete(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	draft := newDraft("stu-1")
	require.NoError(t, repo.Create(ctx, draft))

	err := repo.Delete(ctx, draft.ID, 5)
	assert.True(t, errors.Is(err, workflow.ErrStaleState))

	require.NoError(t, repo.Delete(ctx, draft.ID, 1))
	_, err = repo.GetByID(ctx, draft.ID)
	assert.True(t, errors.Is(err, workflow.ErrNotFound))

	err = repo.Delete(ctx, draft.ID, 1)
	assert.True(t, errors.Is(err, workflow.ErrNotFound))

	submitted := newDraft("stu-1")
	submitted.Status = workflow.StateSubmitted
	require.NoError(t, repo.Create(ctx, submitted))
	err = repo.Delete(ctx, submitted.ID, 1)
	assert.True(t, errors.Is(err, workflow.ErrStaleState))
}

func TestReportRepository_ReceiptRefs(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	refs, err := repo.ReceiptRefs(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)

	require.NoError(t, repo.Create(ctx, newDraft("stu-1")))
	other := newDraft("stu-2")
	other.Items[1].ReceiptRef = "reports/2/b.png"
	require.NoError(t, repo.Create(ctx, other))

	refs, err = repo.ReceiptRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		"reports/1/a.pdf": {},
		"reports/2/b.png": {},
	}, refs)
}

func TestReportRepository_CreateRollsBackInOuterTransaction(t *testing.T) {
	repo, db := setupRepo(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		if err := repo.Create(ctx, newDraft("stu-1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.List(context.Background(), port.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReportRepository_ConcurrentCompareAndSwap(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	report := newDraft("stu-1")
	report.Status = workflow.StateSubmitted
	require.NoError(t, repo.Create(ctx, report))

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		stale   int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := report.Clone()
			if i%2 == 0 {
				next.Status = workflow.StateFacultyApproved
			} else {
				next.Status = workflow.StateRejected
			}
			err := repo.CompareAndSwap(ctx, next, workflow.StateSubmitted, 1)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, workflow.ErrStaleState):
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, writers-1, stale)

	got, err := repo.GetByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}
