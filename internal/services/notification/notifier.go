package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"viewly/internal/models"
)

// Notifier delivers a single event to its recipient.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent) error
}

// Message is the rendered form of an event handed to delivery channels.
type Message struct {
	models.NotificationEvent
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var subjects = map[models.EventType]string{
	models.EventViewingRequested: "New viewing request",
	models.EventPaymentReceived:  "Viewing fee received",
	models.EventViewingScheduled: "Viewing scheduled",
	models.EventViewingCancelled: "Viewing cancelled",
	models.EventNoShowReported:   "No-show reported",
	models.EventNoShowDisputed:   "No-show disputed",
	models.EventNoShowFinalized:  "No-show claim finalized",
	models.EventViewingConfirmed: "Viewing confirmed",
	models.EventViewingCompleted: "Viewing completed",
	models.EventViewingExpired:   "Viewing request expired",
	models.EventDisputeResolved:  "Dispute resolved",
}

// Render builds the subject and body for an event.
func Render(event models.NotificationEvent) Message {
	subject, ok := subjects[event.Type]
	if !ok {
		subject = "Viewing update"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s for viewing request %s.", subject, event.ViewingRequestID)
	if status, ok := event.Payload["status"]; ok {
		fmt.Fprintf(&b, " Status: %v.", status)
	}
	if refund, ok := event.Payload["refund_amount"]; ok {
		fmt.Fprintf(&b, " Refund: %v.", refund)
	}
	if payout, ok := event.Payload["landlord_payout"]; ok {
		fmt.Fprintf(&b, " Payout: %v.", payout)
	}
	if reason, ok := event.Payload["reason"]; ok && reason != "" {
		fmt.Fprintf(&b, " Reason: %v.", reason)
	}

	return Message{NotificationEvent: event, Subject: subject, Body: b.String()}
}

// LogNotifier writes events to the structured log. Used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, event models.NotificationEvent) error {
	msg := Render(event)
	n.logger.InfoContext(ctx, "notification",
		"recipient_id", event.RecipientID,
		"type", string(event.Type),
		"viewing_request_id", event.ViewingRequestID,
		"subject", msg.Subject,
	)
	return nil
}
