// Package notify holds notifiers that need no external service.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
)

// LogNotifier writes status notifications to the log. It is used when Lark is disabled.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) port.Notifier {
	return &LogNotifier{logger: logger}
}

// NotifyStatusChange logs the notification and never fails
func (n *LogNotifier) NotifyStatusChange(ctx context.Context, note port.StatusNotification) error {
	n.logger.Info("Status notification",
		zap.Int64("report_id", note.ReportID),
		zap.String("recipient", note.RecipientEmail),
		zap.String("from", note.FromStatus),
		zap.String("to", note.ToStatus),
		zap.String("action", note.Action),
		zap.String("actor_id", note.ActorID),
		zap.String("remarks", note.Remarks))
	return nil
}
