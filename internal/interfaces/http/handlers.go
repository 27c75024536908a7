package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/domain/access"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		services:       services,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ItemRequest is one expense line in a create or update request
type ItemRequest struct {
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"paymentMethod"`
	ReceiptRef    string          `json:"receiptRef"`
}

// ReportRequest is the body of POST and PUT /api/expense-reports
type ReportRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ReportType  string        `json:"reportType"`
	FacultyID   string        `json:"facultyId"`
	Items       []ItemRequest `json:"items"`
}

// DecisionRequest is the body of PATCH /api/expense-reports/:id/approve
type DecisionRequest struct {
	Action    string `json:"action"`
	Remarks   string `json:"remarks"`
	FundType  string `json:"fundType"`
	ProjectID string `json:"projectId"`
}

// legacyViewFlags are the boolean query flags older clients send instead of view=
var legacyViewFlags = []service.View{
	service.ViewPending,
	service.ViewReviewed,
	service.ViewAll,
	service.ViewProcessed,
	service.ViewDrafts,
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateReport handles POST /api/expense-reports
func (h *Handlers) CreateReport(c *gin.Context) {
	actor, input, ok := h.bindReport(c)
	if !ok {
		return
	}

	report, err := h.services.Reports.CreateDraft(c.Request.Context(), actor, input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: report})
}

// ListReports handles GET /api/expense-reports
func (h *Handlers) ListReports(c *gin.Context) {
	actor := mustActor(c)

	view, err := viewFromQuery(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	reports, err := h.services.Queries.ListFor(c.Request.Context(), actor, view)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if reports == nil {
		reports = []*entity.ExpenseReport{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: reports})
}

// GetReport handles GET /api/expense-reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	report, err := h.services.Reports.Get(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// UpdateReport handles PUT /api/expense-reports/:id
func (h *Handlers) UpdateReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	actor, input, ok := h.bindReport(c)
	if !ok {
		return
	}

	report, err := h.services.Reports.UpdateDraft(c.Request.Context(), actor, id, input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// DeleteReport handles DELETE /api/expense-reports/:id
func (h *Handlers) DeleteReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	if err := h.services.Reports.Delete(c.Request.Context(), mustActor(c), id); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SubmitReport handles POST /api/expense-reports/:id/submit
func (h *Handlers) SubmitReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	report, err := h.services.Reports.Submit(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// ReopenReport handles POST /api/expense-reports/:id/reopen
func (h *Handlers) ReopenReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	report, err := h.services.Reports.Reopen(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// DecideReport handles PATCH /api/expense-reports/:id/approve
func (h *Handlers) DecideReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	report, err := h.services.Reports.Decide(c.Request.Context(), mustActor(c), id,
		domainwf.Action(req.Action),
		workflow.TransitionPayload{
			Remarks:   req.Remarks,
			FundType:  domainwf.FundType(req.FundType),
			ProjectID: req.ProjectID,
		})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// GetWorkflow handles GET /api/expense-reports/:id/workflow
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	view, err := h.services.Reports.Workflow(c.Request.Context(), mustActor(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// UploadReceipt handles POST /api/expense-reports/:id/receipts with a multipart "file" field
func (h *Handlers) UploadReceipt(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		badRequest(c, fmt.Sprintf("receipt exceeds %d bytes", h.maxUploadBytes))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.writeError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.writeError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	receipt, err := h.services.Receipts.Attach(c.Request.Context(), mustActor(c), id, header.Filename, content)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: receipt})
}

// ExportReport handles GET /api/expense-reports/:id/export
func (h *Handlers) ExportReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	fileName, contentType, err := h.services.Exports.Export(c.Request.Context(), mustActor(c), id, &buf)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// bindReport decodes a ReportRequest into service input
func (h *Handlers) bindReport(c *gin.Context) (access.Actor, service.ReportInput, bool) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return access.Actor{}, service.ReportInput{}, false
	}

	items := make([]entity.ExpenseItem, 0, len(req.Items))
	for i, item := range req.Items {
		date, err := parseDate(item.Date)
		if err != nil {
			badRequest(c, fmt.Sprintf("items[%d].date: %v", i, err))
			return access.Actor{}, service.ReportInput{}, false
		}
		items = append(items, entity.ExpenseItem{
			Category:      entity.ExpenseCategory(item.Category),
			Description:   item.Description,
			Amount:        item.Amount,
			Currency:      item.Currency,
			Date:          date,
			PaymentMethod: entity.PaymentMethod(item.PaymentMethod),
			ReceiptRef:    item.ReceiptRef,
		})
	}

	return mustActor(c), service.ReportInput{
		Title:       req.Title,
		Description: req.Description,
		ReportType:  entity.ReportType(req.ReportType),
		FacultyID:   req.FacultyID,
		Items:       items,
	}, true
}

// viewFromQuery reads view=, then the legacy boolean flags, and defaults to the caller's own reports
func viewFromQuery(c *gin.Context) (service.View, error) {
	if v := c.Query("view"); v != "" {
		return service.ParseView(v)
	}
	for _, flag := range legacyViewFlags {
		if c.Query(string(flag)) == "true" {
			return flag, nil
		}
	}
	return service.ViewMine, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t.UTC(), nil
}

func reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid report ID")
		return 0, false
	}
	return id, true
}

// mustActor returns the actor set by authMiddleware
func mustActor(c *gin.Context) access.Actor {
	actor, _ := actorFrom(c)
	return actor
}
