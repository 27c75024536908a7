package lark

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
)

// Notifier tells submitters about status changes through a Lark message addressed by email
type Notifier struct {
	messenger *Messenger
	logger    *zap.Logger
}

// NewNotifier creates a Lark-backed port.Notifier
func NewNotifier(messenger *Messenger, logger *zap.Logger) port.Notifier {
	return &Notifier{
		messenger: messenger,
		logger:    logger,
	}
}

// NotifyStatusChange sends the notification text to note.RecipientEmail
func (n *Notifier) NotifyStatusChange(ctx context.Context, note port.StatusNotification) error {
	if note.RecipientEmail == "" {
		return fmt.Errorf("notification for report %d has no recipient", note.ReportID)
	}

	if _, err := n.messenger.SendText(ctx, ReceiveIDEmail, note.RecipientEmail, FormatStatusChange(note)); err != nil {
		return fmt.Errorf("notify report %d: %w", note.ReportID, err)
	}
	return nil
}

// FormatStatusChange renders the message body for a status notification
func FormatStatusChange(note port.StatusNotification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expense report #%d", note.ReportID)
	if note.Title != "" {
		fmt.Fprintf(&b, " %q", note.Title)
	}
	fmt.Fprintf(&b, " moved from %s to %s", note.FromStatus, note.ToStatus)
	if note.Action != "" {
		fmt.Fprintf(&b, " (%s", note.Action)
		if note.ActorID != "" {
			fmt.Fprintf(&b, " by %s", note.ActorID)
		}
		b.WriteString(")")
	}
	b.WriteString(".")
	if note.Remarks != "" {
		fmt.Fprintf(&b, "\nRemarks: %s", note.Remarks)
	}
	return b.String()
}
