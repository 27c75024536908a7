package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/access"
)

// ExportService renders reports for download
type ExportService interface {
	// Export writes the report to w and returns the suggested file name and content type
	Export(ctx context.Context, actor access.Actor, reportID int64, w io.Writer) (fileName string, contentType string, err error)
}

type exportServiceImpl struct {
	reportRepo port.ReportRepository
	exporter   port.ReportExporter
	logger     Logger
}

// NewExportService creates a new ExportService
func NewExportService(reportRepo port.ReportRepository, exporter port.ReportExporter, logger Logger) ExportService {
	return &exportServiceImpl{
		reportRepo: reportRepo,
		exporter:   exporter,
		logger:     logger,
	}
}

func (s *exportServiceImpl) Export(ctx context.Context, actor access.Actor, reportID int64, w io.Writer) (string, string, error) {
	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return "", "", err
	}
	if err := access.AuthorizeView(actor, report); err != nil {
		return "", "", err
	}

	if err := s.exporter.Export(ctx, report, w); err != nil {
		s.logger.Error("Failed to export report", "error", err, "report_id", reportID)
		return "", "", fmt.Errorf("export report: %w", err)
	}

	s.logger.Info("Report exported", "report_id", reportID, "actor_id", actor.ID)
	return fmt.Sprintf("expense-report-%d%s", reportID, s.exporter.Extension()), s.exporter.ContentType(), nil
}
