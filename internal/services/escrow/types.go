package escrow

import (
	"time"

	"viewly/internal/models"
)

// Actor is the caller's role relative to the viewing, as established by the caller.
type Actor string

const (
	ActorTenant   Actor = "tenant"
	ActorLandlord Actor = "landlord"
	ActorAdmin    Actor = "admin"
	ActorSystem   Actor = "system"
)

// Action is a requested transition.
type Action string

const (
	ActionCancel         Action = "cancel"
	ActionReportNoShow   Action = "report_no_show"
	ActionDisputeNoShow  Action = "dispute_no_show"
	ActionConfirm        Action = "confirm"
	ActionSchedule       Action = "schedule"
	ActionExpire         Action = "expire"
	ActionFinalizeNoShow Action = "finalize_no_show"
	ActionResolveDispute Action = "resolve_dispute"
)

// DefaultDisputeWindow is how long a tenant has to contest a no-show claim.
const DefaultDisputeWindow = 24 * time.Hour

// Command is one request to move a viewing through its lifecycle.
type Command struct {
	Action Action
	Actor  Actor
	Now    time.Time

	// Reason is stored as the cancellation reason on cancel, no-show and resolution.
	Reason string
	// Evidence is the tenant's statement when disputing a no-show.
	Evidence string
	// ScheduledDate is the chosen slot for ActionSchedule.
	ScheduledDate time.Time
	// Outcome is the final status for ActionResolveDispute.
	Outcome models.ViewingStatus
	// OnBehalfOf attributes an admin cancellation to tenant or landlord.
	OnBehalfOf Actor
}

// Result is a computed transition, ready to be committed.
type Result struct {
	Viewing *models.Viewing
	Split   Split
	// Payout is non-nil when a landlord payout must be created with the commit.
	Payout *models.Payout
	// RefundDue is the amount to return to the tenant through the payment provider.
	RefundDue int64
	// Resolved is true when the escrow reached a terminal status.
	Resolved      bool
	BothConfirmed bool
	Events        []models.NotificationEvent
}
