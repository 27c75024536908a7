package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/event"
)

// NotificationService tells submitters about status changes on their reports
type NotificationService interface {
	// HandleStatusChanged is the dispatcher handler for report.status_changed
	HandleStatusChanged(ctx context.Context, evt *event.Event) error

	// Register subscribes the service to the events it handles
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier: notifier,
		logger:   logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeStatusChanged, "notify-submitter", s.HandleStatusChanged)
}

// HandleStatusChanged sends one notification per committed transition. Failures are returned
// to the dispatcher, which logs them; nothing is retried.
func (s *notificationServiceImpl) HandleStatusChanged(ctx context.Context, evt *event.Event) error {
	n := port.StatusNotification{
		ReportID:       evt.ReportID,
		Title:          evt.GetPayloadString(event.KeyTitle),
		RecipientEmail: evt.GetPayloadString(event.KeySubmitter),
		SubmitterID:    evt.GetPayloadString(event.KeySubmitterID),
		FromStatus:     evt.GetPayloadString(event.KeyFromStatus),
		ToStatus:       evt.GetPayloadString(event.KeyToStatus),
		Action:         evt.GetPayloadString(event.KeyAction),
		Remarks:        evt.GetPayloadString(event.KeyRemarks),
		ActorID:        evt.ActorID,
	}

	if n.RecipientEmail == "" {
		s.logger.Info("Skipping notification without recipient", "report_id", n.ReportID, "event_id", evt.ID)
		return nil
	}
	// submitters do not need to hear about their own submit or reopen
	if n.ActorID != "" && n.ActorID == n.SubmitterID {
		return nil
	}

	if err := s.notifier.NotifyStatusChange(ctx, n); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "report_id", n.ReportID, "to", n.ToStatus)
		return fmt.Errorf("notify status change: %w", err)
	}

	s.logger.Info("Notification sent",
		"report_id", n.ReportID,
		"recipient", n.RecipientEmail,
		"from", n.FromStatus,
		"to", n.ToStatus,
	)
	return nil
}
