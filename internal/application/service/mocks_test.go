package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/domain/access"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/event"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// mockReportRepo keeps reports in memory unless a func field overrides the call
type mockReportRepo struct {
	mu      sync.Mutex
	reports map[int64]*entity.ExpenseReport
	nextID  int64

	listFunc   func(ctx context.Context, filter port.ReportFilter) ([]*entity.ExpenseReport, error)
	casFunc    func(ctx context.Context, report *entity.ExpenseReport, expectedStatus domainwf.State, expectedVersion int64) error
	deleteFunc func(ctx context.Context, id int64, expectedVersion int64) error
}

func newMockReportRepo(reports ...*entity.ExpenseReport) *mockReportRepo {
	m := &mockReportRepo{reports: make(map[int64]*entity.ExpenseReport)}
	for _, r := range reports {
		m.reports[r.ID] = r.Clone()
		if r.ID > m.nextID {
			m.nextID = r.ID
		}
	}
	return m
}

func (m *mockReportRepo) Create(ctx context.Context, report *entity.ExpenseReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	report.ID = m.nextID
	report.Version = 1
	m.reports[report.ID] = report.Clone()
	return nil
}

func (m *mockReportRepo) GetByID(ctx context.Context, id int64) (*entity.ExpenseReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, domainwf.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *mockReportRepo) List(ctx context.Context, filter port.ReportFilter) ([]*entity.ExpenseReport, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*entity.ExpenseReport
	for _, r := range m.reports {
		if filter.SubmitterID != "" && r.SubmitterID != filter.SubmitterID {
			continue
		}
		if filter.ExcludeSubmitterID != "" && r.SubmitterID == filter.ExcludeSubmitterID {
			continue
		}
		if filter.ExcludeDraft && r.IsDraft() {
			continue
		}
		if filter.ActedBy != "" && !r.HasActed(filter.ActedBy) {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				if r.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *mockReportRepo) CompareAndSwap(ctx context.Context, report *entity.ExpenseReport, expectedStatus domainwf.State, expectedVersion int64) error {
	if m.casFunc != nil {
		return m.casFunc(ctx, report, expectedStatus, expectedVersion)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reports[report.ID]
	if !ok {
		return domainwf.ErrNotFound
	}
	if stored.Status != expectedStatus || stored.Version != expectedVersion {
		return domainwf.ErrStaleState
	}
	report.Version = expectedVersion + 1
	m.reports[report.ID] = report.Clone()
	return nil
}

func (m *mockReportRepo) Delete(ctx context.Context, id int64, expectedVersion int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, expectedVersion)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, id)
	return nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockEngine struct {
	applyFunc     func(ctx context.Context, reportID int64, actor access.Actor, action domainwf.Action, payload workflow.TransitionPayload) (*entity.ExpenseReport, error)
	submitFunc    func(ctx context.Context, reportID int64, actor access.Actor) (*entity.ExpenseReport, error)
	reopenFunc    func(ctx context.Context, reportID int64, actor access.Actor) (*entity.ExpenseReport, error)
	permittedFunc func(actor access.Actor, report *entity.ExpenseReport) []domainwf.Action
}

func (m *mockEngine) ApplyTransition(ctx context.Context, reportID int64, actor access.Actor, action domainwf.Action, payload workflow.TransitionPayload) (*entity.ExpenseReport, error) {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, reportID, actor, action, payload)
	}
	return nil, nil
}

func (m *mockEngine) Submit(ctx context.Context, reportID int64, actor access.Actor) (*entity.ExpenseReport, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, reportID, actor)
	}
	return nil, nil
}

func (m *mockEngine) Reopen(ctx context.Context, reportID int64, actor access.Actor) (*entity.ExpenseReport, error) {
	if m.reopenFunc != nil {
		return m.reopenFunc(ctx, reportID, actor)
	}
	return nil, nil
}

func (m *mockEngine) PermittedActions(actor access.Actor, report *entity.ExpenseReport) []domainwf.Action {
	if m.permittedFunc != nil {
		return m.permittedFunc(actor, report)
	}
	return nil
}

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockStorage struct {
	files      map[string][]byte
	saveErr    error
	deleteErrs map[string]error
	deleted    []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return m.files[path], nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	m.deleted = append(m.deleted, path)
	if err := m.deleteErrs[path]; err != nil {
		return err
	}
	delete(m.files, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/data/" + relativePath
}

type mockInspector struct {
	inspectFunc func(ctx context.Context, filename string, content []byte) (*port.ReceiptInfo, error)
}

func (m *mockInspector) Inspect(ctx context.Context, filename string, content []byte) (*port.ReceiptInfo, error) {
	if m.inspectFunc != nil {
		return m.inspectFunc(ctx, filename, content)
	}
	return &port.ReceiptInfo{MimeType: "application/pdf", PageCount: 1}, nil
}

type mockNotifier struct {
	notifyFunc func(ctx context.Context, n port.StatusNotification) error
	sent       []port.StatusNotification
}

func (m *mockNotifier) NotifyStatusChange(ctx context.Context, n port.StatusNotification) error {
	m.sent = append(m.sent, n)
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, n)
	}
	return nil
}

type mockExporter struct {
	exportFunc func(ctx context.Context, report *entity.ExpenseReport, w io.Writer) error
}

func (m *mockExporter) Export(ctx context.Context, report *entity.ExpenseReport, w io.Writer) error {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, report, w)
	}
	_, err := io.WriteString(w, report.Title)
	return err
}

func (m *mockExporter) ContentType() string { return "text/plain" }

func (m *mockExporter) Extension() string { return ".txt" }

type mockDispatcher struct {
	mu          sync.Mutex
	events      []*event.Event
	subscribers map[event.Type][]string
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {
	m.SubscribeNamed(eventType, "", handler)
}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
	if m.subscribers == nil {
		m.subscribers = make(map[event.Type][]string)
	}
	m.subscribers[eventType] = append(m.subscribers[eventType], name)
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo { return nil }

func (m *mockDispatcher) Close() error { return nil }

// Fixtures

var (
	student = access.Actor{ID: "stu-1", Role: domainwf.RoleStudent, Name: "Asha", Email: "asha@example.edu"}
	faculty = access.Actor{ID: "fac-1", Role: domainwf.RoleFaculty, Email: "fac@example.edu"}
	chair   = access.Actor{ID: "chair-1", Role: domainwf.RoleSchoolChair}
	auditor = access.Actor{ID: "aud-1", Role: domainwf.RoleAudit}
	finance = access.Actor{ID: "fin-1", Role: domainwf.RoleFinance}
	admin   = access.Actor{ID: "adm-1", Role: domainwf.RoleAdmin}
)

var baseTime = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

var testRates = entity.RateTable{
	Base: "INR",
	Rates: map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("83"),
		"EUR": decimal.RequireFromString("90.5"),
	},
}

func item(amount, currency string) entity.ExpenseItem {
	return entity.ExpenseItem{
		Category:      entity.CategoryTravel,
		Description:   "Taxi",
		Amount:        decimal.RequireFromString(amount),
		Currency:      currency,
		Date:          baseTime.Add(-24 * time.Hour),
		PaymentMethod: entity.PaymentCard,
	}
}

func report(id int64, submitter access.Actor, status domainwf.State) *entity.ExpenseReport {
	return &entity.ExpenseReport{
		ID:             id,
		SubmitterID:    submitter.ID,
		SubmitterRole:  submitter.Role,
		SubmitterEmail: submitter.Email,
		Title:          "Report",
		ReportType:     entity.ReportTypeResearch,
		Items:          []entity.ExpenseItem{item("100", "INR")},
		TotalAmount:    decimal.RequireFromString("100"),
		Currency:       "INR",
		Status:         status,
		CreatedAt:      baseTime.Add(time.Duration(id) * time.Minute),
		UpdatedAt:      baseTime.Add(time.Duration(id) * time.Minute),
		Version:        1,
	}
}

func approved(stage domainwf.Stage, actor access.Actor, at time.Time) entity.ApprovalRecord {
	return entity.NewApprovalRecord(stage, domainwf.ActionApprove, actor.ID, "", at)
}
