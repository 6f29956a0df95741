package escrow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"viewly/internal/models"
)

// allowedFrom lists the statuses each action may start from.
var allowedFrom = map[Action][]models.ViewingStatus{
	ActionCancel:         {models.StatusPending, models.StatusScheduled},
	ActionReportNoShow:   {models.StatusScheduled},
	ActionDisputeNoShow:  {models.StatusTenantNoShow},
	ActionConfirm:        {models.StatusScheduled},
	ActionSchedule:       {models.StatusPending},
	ActionExpire:         {models.StatusPending},
	ActionFinalizeNoShow: {models.StatusTenantNoShow},
	ActionResolveDispute: {models.StatusDisputed},
}

// allowedActors lists who may perform each action.
var allowedActors = map[Action][]Actor{
	ActionCancel:         {ActorTenant, ActorLandlord, ActorAdmin},
	ActionReportNoShow:   {ActorLandlord, ActorAdmin},
	ActionDisputeNoShow:  {ActorTenant},
	ActionConfirm:        {ActorTenant, ActorLandlord},
	ActionSchedule:       {ActorLandlord, ActorAdmin},
	ActionExpire:         {ActorSystem, ActorAdmin},
	ActionFinalizeNoShow: {ActorSystem, ActorAdmin},
	ActionResolveDispute: {ActorAdmin},
}

// CanTransition reports whether action is allowed from status for actor.
func CanTransition(action Action, from models.ViewingStatus, actor Actor) bool {
	return contains(allowedFrom[action], from) && contains(allowedActors[action], actor)
}

// AllowedActors returns the actors that may ever perform action.
func AllowedActors(action Action) []Actor {
	return append([]Actor(nil), allowedActors[action]...)
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Machine applies commands to viewings.
type Machine struct {
	DisputeWindow time.Duration
	PayoutMethod  string
	NewID         func() string
}

// NewMachine returns a machine with the standard 24h dispute window.
func NewMachine() *Machine {
	return &Machine{
		DisputeWindow: DefaultDisputeWindow,
		PayoutMethod:  "bank_transfer",
		NewID:         uuid.NewString,
	}
}

// Apply validates cmd against v and computes the transition on a copy of v.
// v itself is never modified.
func (m *Machine) Apply(v *models.Viewing, cmd Command) (*Result, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil viewing", ErrInvalidCommand)
	}
	from := v.Request.Status
	if _, ok := allowedFrom[cmd.Action]; !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, cmd.Action)
	}
	if !contains(allowedActors[cmd.Action], cmd.Actor) {
		return nil, &TransitionError{Action: cmd.Action, From: from, Actor: cmd.Actor, Reason: "actor not permitted"}
	}
	// a retried confirmation stays idempotent after the viewing moved on
	if cmd.Action == ActionConfirm && hasConfirmed(&v.Request, cmd.Actor) {
		return nil, ErrAlreadyConfirmed
	}
	if !contains(allowedFrom[cmd.Action], from) {
		return nil, &TransitionError{Action: cmd.Action, From: from, Actor: cmd.Actor}
	}

	now := cmd.Now.UTC()
	next := v.Clone()
	res := &Result{Viewing: next}

	var err error
	switch cmd.Action {
	case ActionCancel:
		err = m.cancel(next, cmd, now, res)
	case ActionReportNoShow:
		err = m.reportNoShow(next, cmd, now, res)
	case ActionDisputeNoShow:
		err = m.disputeNoShow(next, cmd, now, res)
	case ActionConfirm:
		err = m.confirm(next, cmd, now, res)
	case ActionSchedule:
		err = m.schedule(next, cmd, now, res)
	case ActionExpire:
		err = m.expire(next, cmd, now, res)
	case ActionFinalizeNoShow:
		err = m.finalizeNoShow(next, cmd, now, res)
	case ActionResolveDispute:
		err = m.resolveDispute(next, cmd, now, res)
	}
	if err != nil {
		return nil, err
	}

	next.Request.UpdatedAt = now
	next.Transaction.UpdatedAt = now
	return res, nil
}

func (m *Machine) cancel(v *models.Viewing, cmd Command, now time.Time, res *Result) error {
	party := cmd.Actor
	if party == ActorAdmin {
		party = cmd.OnBehalfOf
		if party == "" {
			party = ActorLandlord
		}
		if party != ActorTenant && party != ActorLandlord {
			return fmt.Errorf("%w: cancellation must be attributed to tenant or landlord", ErrInvalidCommand)
		}
	}

	split := Compute(PolicyInput{
		Actor:         party,
		Now:           now,
		ScheduledDate: v.Request.ScheduledDate,
		Amount:        v.Transaction.Amount,
	})

	by := models.PartyLandlord
	v.Request.Status = models.StatusCancelledByLandlord
	if party == ActorTenant {
		by = models.PartyTenant
		v.Request.Status = models.StatusCancelledByTenant
	}
	v.Request.CancelledBy = &by
	v.Request.CancellationReason = cmd.Reason

	if err := m.settle(v, split, now, res); err != nil {
		return err
	}
	res.Events = append(res.Events, both(v, models.EventViewingCancelled, now, map[string]interface{}{
		"cancelled_by":    string(by),
		"reason":          cmd.Reason,
		"refund_amount":   res.Split.Refund,
		"landlord_payout": res.Split.Payout,
	})...)
	return nil
}

// reportNoShow opens the dispute window. The landlord's payout is not created
// until the window lapses (see finalizeNoShow), so the escrow stays held.
func (m *Machine) reportNoShow(v *models.Viewing, cmd Command, now time.Time, res *Result) error {
	deadline := now.Add(m.DisputeWindow)
	v.Request.Status = models.StatusTenantNoShow
	v.Request.DisputeDeadline = &deadline
	v.Request.CancellationReason = cmd.Reason

	res.Split = Compute(PolicyInput{
		Actor:       cmd.Actor,
		Now:         now,
		DisputeType: DisputeTenantNoShow,
		Amount:      v.Transaction.Amount,
	})
	res.Events = append(res.Events, event(v.Request.TenantID, v, models.EventNoShowReported, now, map[string]interface{}{
		"reason":           cmd.Reason,
		"dispute_deadline": deadline,
	}))
	return nil
}

func (m *Machine) disputeNoShow(v *models.Viewing, cmd Command, now time.Time, res *Result) error {
	deadline := v.Request.DisputeDeadline
	if deadline == nil {
		return &TransitionError{Action: cmd.Action, From: v.Request.Status, Actor: cmd.Actor, Reason: "no dispute deadline recorded"}
	}
	if now.After(*deadline) {
		return ErrDisputeWindowExpired
	}

	v.Request.Status = models.StatusDisputed
	v.Request.DisputeEvidence = cmd.Evidence
	if cmd.Reason != "" {
		v.Request.CancellationReason = cmd.Reason
	}
	res.Split = Compute(PolicyInput{
		Actor:       cmd.Actor,
		Now:         now,
		DisputeType: DisputeTenantDisputeNoShow,
		Amount:      v.Transaction.Amount,
	})
	res.Events = append(res.Events, event(v.Request.LandlordID, v, models.EventNoShowDisputed, now, map[string]interface{}{
		"evidence": cmd.Evidence,
	}))
	return nil
}

func hasConfirmed(r *models.ViewingRequest, actor Actor) bool {
	switch actor {
	case ActorTenant:
		return r.TenantConfirmed
	case ActorLandlord:
		return r.LandlordConfirmed
	}
	return false
}

func (m *Machine) confirm(v *models.Viewing, cmd Command, now time.Time, res *Result) error {
	r := &v.Request
	var other bool
	var otherID string
	switch cmd.Actor {
	case ActorTenant:
		if r.TenantConfirmed {
			return ErrAlreadyConfirmed
		}
		r.TenantConfirmed = true
		r.TenantConfirmedAt = &now
		other, otherID = r.LandlordConfirmed, r.LandlordID
	case ActorLandlord:
		if r.LandlordConfirmed {
			return ErrAlreadyConfirmed
		}
		r.LandlordConfirmed = true
		r.LandlordConfirmedAt = &now
		other, otherID = r.TenantConfirmed, r.TenantID
	}

	if !other {
		res.Events = append(res.Events, event(otherID, v, models.EventViewingConfirmed, now, map[string]interface{}{
			"confirmed_by": string(cmd.Actor),
		}))
		return nil
	}

	r.Status = models.StatusCompleted
	res.BothConfirmed = true
	if err := m.settle(v, FullPayout(v.Transaction.Amount), now, res); err != nil {
		return err
	}
	res.Events = append(res.Events, both(v, models.EventViewingCompleted, now, map[string]interface{}{
		"landlord_payout": res.Split.Payout,
	})...)
	return nil
}

func (m *Machine) schedule(v *models.Viewing, cmd Command, now time.Time, res *Result) error {
	if v.Transaction.EscrowStatus != models.EscrowHeld {
		return &TransitionError{Action: cmd.Action, From: v.Request.Status, Actor: cmd.Actor, Reason: "viewing fee not paid"}
	}
	date := cmd.ScheduledDate.UTC()
	if !v.Request.HasPreferredDate(date) {
		return fmt.Errorf("%w: %s is not one of the preferred dates", ErrInvalidCommand, date.Format(time.RFC3339))
	}
	if !date.After(now) {
		return fmt.Errorf("%w: scheduled date must be in the future", ErrInvalidCommand)
	}

	v.Request.Status = models.StatusScheduled
	v.Request.ScheduledDate = &date
	res.Events = append(res.Events, event(v.Request.TenantID, v, models.EventViewingScheduled, now, map[string]interface{}{
		"scheduled_date": date,
	}))
	return nil
}

func (m *Machine) expire(v *models.Viewing, cmd Command, now time.Time, res *Result) error {
	v.Request.Status = models.StatusExpired
	if cmd.Reason != "" {
		v.Request.CancellationReason = cmd.Reason
	}
	if err := m.settle(v, FullRefund(v.Transaction.Amount), now, res); err != nil {
		return err
	}
	res.Events = append(res.Events, both(v, models.EventViewingExpired, now, map[string]interface{}{
		"refund_amount": res.Split.Refund,
	})...)
	return nil
}

// finalizeNoShow settles an uncontested no-show claim. The status stays
// tenant_no_show; the escrow is released to the landlord.
func (m *Machine) finalizeNoShow(v *models.Viewing, cmd Command, now time.Time, res *Result) error {
	deadline := v.Request.DisputeDeadline
	if deadline == nil || !now.After(*deadline) {
		return &TransitionError{Action: cmd.Action, From: v.Request.Status, Actor: cmd.Actor, Reason: "dispute window still open"}
	}
	split := Compute(PolicyInput{
		Actor:       cmd.Actor,
		Now:         now,
		DisputeType: DisputeTenantNoShow,
		Amount:      v.Transaction.Amount,
	})
	if err := m.settle(v, split, now, res); err != nil {
		return err
	}
	res.Events = append(res.Events, both(v, models.EventNoShowFinalized, now, map[string]interface{}{
		"landlord_payout": res.Split.Payout,
	})...)
	return nil
}

func (m *Machine) resolveDispute(v *models.Viewing, cmd Command, now time.Time, res *Result) error {
	var split Split
	var by *models.Party
	switch cmd.Outcome {
	case models.StatusCompleted:
		split = FullPayout(v.Transaction.Amount)
	case models.StatusCancelledByTenant:
		// the tenant missed the viewing after all
		split = FullPayout(v.Transaction.Amount)
		p := models.PartyTenant
		by = &p
	case models.StatusCancelledByLandlord:
		split = FullRefund(v.Transaction.Amount)
		p := models.PartyLandlord
		by = &p
	default:
		return fmt.Errorf("%w: unsupported dispute outcome %q", ErrInvalidCommand, cmd.Outcome)
	}

	v.Request.Status = cmd.Outcome
	v.Request.CancelledBy = by
	if cmd.Reason != "" {
		v.Request.CancellationReason = cmd.Reason
	}
	if err := m.settle(v, split, now, res); err != nil {
		return err
	}
	res.Events = append(res.Events, both(v, models.EventDisputeResolved, now, map[string]interface{}{
		"outcome":         string(cmd.Outcome),
		"refund_amount":   res.Split.Refund,
		"landlord_payout": res.Split.Payout,
	})...)
	return nil
}

// settle moves a held escrow to its terminal status according to split.
// An escrow that was never funded has nothing to move and is left pending.
func (m *Machine) settle(v *models.Viewing, split Split, now time.Time, res *Result) error {
	res.Split = split
	tx := &v.Transaction
	switch tx.EscrowStatus {
	case models.EscrowPending:
		return nil
	case models.EscrowHeld:
	default:
		return &TransitionError{From: v.Request.Status, Reason: "escrow already " + string(tx.EscrowStatus)}
	}

	if split.Total() != tx.Amount {
		return fmt.Errorf("%w: split %d+%d does not cover %d", ErrInvalidCommand, split.Refund, split.Payout, tx.Amount)
	}

	tx.RefundAmount = split.Refund
	tx.PayoutAmount = split.Payout
	tx.ResolvedAt = &now
	tx.EscrowStatus = models.EscrowRefunded
	if split.Payout > 0 {
		tx.EscrowStatus = models.EscrowReleased
		res.Payout = &models.Payout{
			ID:              m.NewID(),
			TransactionID:   tx.ID,
			LandlordID:      v.Request.LandlordID,
			Amount:          split.Payout,
			Method:          m.PayoutMethod,
			Status:          models.PayoutPending,
			ReferenceNumber: referenceNumber(tx.ID),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	res.RefundDue = split.Refund
	res.Resolved = true
	return nil
}

func referenceNumber(txID string) string {
	short := strings.ReplaceAll(txID, "-", "")
	if len(short) > 12 {
		short = short[:12]
	}
	return "PO-" + strings.ToUpper(short)
}

func event(recipient string, v *models.Viewing, typ models.EventType, now time.Time, payload map[string]interface{}) models.NotificationEvent {
	return models.NotificationEvent{
		RecipientID:      recipient,
		Type:             typ,
		ViewingRequestID: v.Request.ID,
		Payload:          payload,
		OccurredAt:       now,
	}
}

func both(v *models.Viewing, typ models.EventType, now time.Time, payload map[string]interface{}) []models.NotificationEvent {
	return []models.NotificationEvent{
		event(v.Request.TenantID, v, typ, now, payload),
		event(v.Request.LandlordID, v, typ, now, payload),
	}
}
