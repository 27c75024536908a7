// Package export renders expense reports as spreadsheets.
package export

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

const (
	SheetSummary   = "Summary"
	SheetItems     = "Items"
	SheetApprovals = "Approvals"

	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05"

	// built-in excelize number format #,##0.00
	numFmtAmount = 4
)

var (
	itemHeader     = []interface{}{"No.", "Date", "Category", "Description", "Amount", "Currency", "Payment Method", "Receipt"}
	approvalHeader = []interface{}{"Stage", "Action", "Approved", "By", "Date", "Remarks", "Superseded"}
)

// XLSXExporter writes a report as a workbook with Summary, Items and Approvals sheets
type XLSXExporter struct {
	fontFamily string
	logger     *zap.Logger
}

// NewXLSXExporter creates an exporter. fontFamily is optional and sets the workbook default font.
func NewXLSXExporter(fontFamily string, logger *zap.Logger) port.ReportExporter {
	return &XLSXExporter{
		fontFamily: fontFamily,
		logger:     logger,
	}
}

// ContentType returns the xlsx MIME type
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension returns the file extension including the dot
func (e *XLSXExporter) Extension() string {
	return ".xlsx"
}

// Export writes the workbook to w
func (e *XLSXExporter) Export(ctx context.Context, report *entity.ExpenseReport, w io.Writer) error {
	file := excelize.NewFile()
	defer file.Close()

	if e.fontFamily != "" {
		if err := file.SetDefaultFont(e.fontFamily); err != nil {
			e.logger.Warn("Failed to set export font",
				zap.String("font", e.fontFamily),
				zap.Error(err))
		}
	}

	if err := file.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetItems, SheetApprovals} {
		if _, err := file.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	amountStyle, err := file.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}
	headerStyle, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.fillSummary(file, report, amountStyle, headerStyle); err != nil {
		return fmt.Errorf("failed to fill summary: %w", err)
	}
	if err := e.fillItems(file, report, amountStyle, headerStyle); err != nil {
		return fmt.Errorf("failed to fill items: %w", err)
	}
	if err := e.fillApprovals(file, report, headerStyle); err != nil {
		return fmt.Errorf("failed to fill approvals: %w", err)
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("Report exported",
		zap.Int64("report_id", report.ID),
		zap.Int("items", len(report.Items)),
		zap.Int("approvals", len(report.Approvals)))
	return nil
}

func (e *XLSXExporter) fillSummary(file *excelize.File, report *entity.ExpenseReport, amountStyle, headerStyle int) error {
	submitted := ""
	if report.SubmissionDate != nil {
		submitted = report.SubmissionDate.Format(timeLayout)
	}

	rows := [][2]interface{}{
		{"Report ID", report.ID},
		{"Title", report.Title},
		{"Description", report.Description},
		{"Report Type", string(report.ReportType)},
		{"Submitter", report.SubmitterName},
		{"Submitter ID", report.SubmitterID},
		{"Submitter Role", string(report.SubmitterRole)},
		{"Fund Type", string(report.FundType)},
		{"Project ID", report.ProjectID},
		{"Status", string(report.Status)},
		{"Total Amount", report.TotalAmount.InexactFloat64()},
		{"Currency", report.Currency},
		{"Submitted", submitted},
		{"Created", report.CreatedAt.Format(timeLayout)},
		{"Updated", report.UpdatedAt.Format(timeLayout)},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(SheetSummary, cell, &[]interface{}{row[0], row[1]}); err != nil {
			return err
		}
		if row[0] == "Total Amount" {
			valueCell, _ := excelize.CoordinatesToCellName(2, i+1)
			if err := file.SetCellStyle(SheetSummary, valueCell, valueCell, amountStyle); err != nil {
				return err
			}
		}
	}

	if err := file.SetCellStyle(SheetSummary, "A1", "A"+strconv.Itoa(len(rows)), headerStyle); err != nil {
		return err
	}
	return file.SetColWidth(SheetSummary, "A", "B", 24)
}

func (e *XLSXExporter) fillItems(file *excelize.File, report *entity.ExpenseReport, amountStyle, headerStyle int) error {
	if err := writeHeader(file, SheetItems, itemHeader, headerStyle); err != nil {
		return err
	}

	for i, item := range report.Items {
		row := i + 2
		no := item.ID
		if no == 0 {
			no = int64(i + 1)
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []interface{}{
			no,
			item.Date.Format(dateLayout),
			string(item.Category),
			item.Description,
			item.Amount.InexactFloat64(),
			item.Currency,
			string(item.PaymentMethod),
			item.ReceiptRef,
		}
		if err := file.SetSheetRow(SheetItems, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		amountCell, _ := excelize.CoordinatesToCellName(5, row)
		if err := file.SetCellStyle(SheetItems, amountCell, amountCell, amountStyle); err != nil {
			return err
		}
	}

	return file.SetColWidth(SheetItems, "B", "H", 16)
}

func (e *XLSXExporter) fillApprovals(file *excelize.File, report *entity.ExpenseReport, headerStyle int) error {
	if err := writeHeader(file, SheetApprovals, approvalHeader, headerStyle); err != nil {
		return err
	}

	for i, a := range report.Approvals {
		row := i + 2
		approved := ""
		if a.Approved != nil {
			approved = strconv.FormatBool(*a.Approved)
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []interface{}{
			string(a.Stage),
			string(a.Action),
			approved,
			a.ApprovedByID,
			a.Date.Format(timeLayout),
			a.Remarks,
			a.Superseded,
		}
		if err := file.SetSheetRow(SheetApprovals, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
	}

	return file.SetColWidth(SheetApprovals, "A", "G", 18)
}

func writeHeader(file *excelize.File, sheet string, header []interface{}, style int) error {
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return file.SetCellStyle(sheet, "A1", last, style)
}
