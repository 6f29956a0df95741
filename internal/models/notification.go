package models

import "time"

// EventType names something that happened to a viewing request.
type EventType string

const (
	EventViewingRequested EventType = "viewing_requested"
	EventPaymentReceived  EventType = "payment_received"
	EventViewingScheduled EventType = "viewing_scheduled"
	EventViewingCancelled EventType = "viewing_cancelled"
	EventNoShowReported   EventType = "no_show_reported"
	EventNoShowDisputed   EventType = "no_show_disputed"
	EventNoShowFinalized  EventType = "no_show_finalized"
	EventViewingConfirmed EventType = "viewing_confirmed"
	EventViewingCompleted EventType = "viewing_completed"
	EventViewingExpired   EventType = "viewing_expired"
	EventDisputeResolved  EventType = "dispute_resolved"
)

// NotificationEvent tells one recipient about a committed transition.
type NotificationEvent struct {
	RecipientID      string                 `json:"recipient_id"`
	Type             EventType              `json:"type"`
	ViewingRequestID string                 `json:"viewing_request_id"`
	Payload          map[string]interface{} `json:"payload,omitempty"`
	OccurredAt       time.Time              `json:"occurred_at"`
}
