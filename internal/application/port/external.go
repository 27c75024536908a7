package port

import (
	"context"
	"io"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// StatusNotification is what an approver decision or submission tells the submitter
type StatusNotification struct {
	ReportID       int64
	Title          string
	RecipientEmail string
	SubmitterID    string
	FromStatus     string
	ToStatus       string
	Action         string
	Remarks        string
	ActorID        string
}

// Notifier delivers status notifications. Delivery is best effort.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, n StatusNotification) error
}

// ReceiptInfo describes an uploaded receipt after inspection
type ReceiptInfo struct {
	MimeType  string
	PageCount int
}

// ReceiptInspector checks an uploaded receipt before it is stored
type ReceiptInspector interface {
	Inspect(ctx context.Context, filename string, content []byte) (*ReceiptInfo, error)
}

// ReportExporter renders a report and its approval trail as a document
type ReportExporter interface {
	Export(ctx context.Context, report *entity.ExpenseReport, w io.Writer) error
	ContentType() string
	Extension() string
}
