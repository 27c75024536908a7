package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/access"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/event"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Receipt is a stored receipt that items can reference
type Receipt struct {
	Ref       string `json:"receiptRef"`
	FileName  string `json:"fileName"`
	MimeType  string `json:"mimeType"`
	PageCount int    `json:"pageCount"`
	Size      int    `json:"size"`
}

// ReceiptPolicy limits what may be uploaded
type ReceiptPolicy struct {
	MaxBytes          int
	AllowedExtensions []string
}

func (p ReceiptPolicy) allows(ext string) bool {
	if len(p.AllowedExtensions) == 0 {
		return true
	}
	for _, allowed := range p.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), strings.TrimPrefix(ext, ".")) {
			return true
		}
	}
	return false
}

// ReceiptService stores receipts for Draft reports
type ReceiptService interface {
	Attach(ctx context.Context, actor access.Actor, reportID int64, fileName string, content []byte) (*Receipt, error)
}

type receiptServiceImpl struct {
	reportRepo port.ReportRepository
	storage    port.FileStorage
	inspector  port.ReceiptInspector
	policy     ReceiptPolicy
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// NewReceiptService creates a new ReceiptService. dispatcher may be nil.
func NewReceiptService(
	reportRepo port.ReportRepository,
	storage port.FileStorage,
	inspector port.ReceiptInspector,
	policy ReceiptPolicy,
	d dispatcher.Dispatcher,
	logger Logger,
) ReceiptService {
	return &receiptServiceImpl{
		reportRepo: reportRepo,
		storage:    storage,
		inspector:  inspector,
		policy:     policy,
		dispatcher: d,
		logger:     logger,
	}
}

// Attach validates and stores a receipt under reports/<id>/
func (s *receiptServiceImpl) Attach(ctx context.Context, actor access.Actor, reportID int64, fileName string, content []byte) (*Receipt, error) {
	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeOwner(actor, report); err != nil {
		return nil, err
	}
	if !report.IsDraft() {
		return nil, fmt.Errorf("%w: receipts can only be added to a draft", domainwf.ErrImmutableReport)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: receipt is empty", domainwf.ErrValidation)
	}
	if s.policy.MaxBytes > 0 && len(content) > s.policy.MaxBytes {
		return nil, fmt.Errorf("%w: receipt exceeds %d bytes", domainwf.ErrValidation, s.policy.MaxBytes)
	}
	if !s.policy.allows(ext) {
		return nil, fmt.Errorf("%w: receipt type %q is not allowed", domainwf.ErrValidation, ext)
	}

	info, err := s.inspector.Inspect(ctx, fileName, content)
	if err != nil {
		s.logger.Error("Receipt inspection failed", "error", err, "report_id", reportID, "file_name", fileName)
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}

	ref := entity.ReceiptPrefix(reportID) + uuid.NewString() + ext
	if err := s.storage.Save(ctx, ref, content); err != nil {
		s.logger.Error("Failed to store receipt", "error", err, "report_id", reportID)
		return nil, fmt.Errorf("store receipt: %w", err)
	}

	receipt := &Receipt{
		Ref:       ref,
		FileName:  filepath.Base(fileName),
		MimeType:  info.MimeType,
		PageCount: info.PageCount,
		Size:      len(content),
	}

	s.logger.Info("Receipt stored",
		"report_id", reportID,
		"receipt", ref,
		"mime_type", info.MimeType,
		"pages", info.PageCount,
		"size", len(content),
	)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeReceiptAttached, reportID, actor.ID, map[string]interface{}{
			"receiptRef": ref,
			"pages":      info.PageCount,
		}))
	}

	return receipt, nil
}
