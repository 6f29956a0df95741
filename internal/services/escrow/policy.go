package escrow

import "time"

// DisputeType selects the no-show rules instead of the voluntary cancellation rules.
type DisputeType string

const (
	DisputeNone                DisputeType = ""
	DisputeTenantNoShow        DisputeType = "tenant_no_show"
	DisputeTenantDisputeNoShow DisputeType = "tenant_dispute_no_show"
)

// FullRefundWindow is the minimum notice for a tenant to cancel without charge.
const FullRefundWindow = 24 * time.Hour

// PolicyInput is everything the money policy looks at.
type PolicyInput struct {
	Actor         Actor
	Now           time.Time
	ScheduledDate *time.Time
	DisputeType   DisputeType
	Amount        int64
}

// Split divides a fee. Refund + Payout always equals the fee.
type Split struct {
	Refund int64 `json:"refund_amount"`
	Payout int64 `json:"landlord_payout"`
}

// FullRefund returns the whole amount to the tenant.
func FullRefund(amount int64) Split {
	return Split{Refund: amount}
}

// FullPayout gives the whole amount to the landlord.
func FullPayout(amount int64) Split {
	return Split{Payout: amount}
}

// Frozen keeps the whole amount in escrow. It is the only split that does not
// account for the full amount; it is never settled.
func Frozen() Split {
	return Split{}
}

// Compute applies the refund policy.
//
// No-show claims take precedence over the actor rules. A tenant cancelling
// more than 24h ahead gets everything back, within 24h half (rounded down, the
// odd unit goes to the landlord), and nothing once the viewing time has passed.
// Landlord and platform cancellations always refund in full.
func Compute(in PolicyInput) Split {
	switch in.DisputeType {
	case DisputeTenantNoShow:
		return FullPayout(in.Amount)
	case DisputeTenantDisputeNoShow:
		return Frozen()
	}

	if in.Actor != ActorTenant || in.ScheduledDate == nil {
		return FullRefund(in.Amount)
	}

	until := in.ScheduledDate.Sub(in.Now)
	switch {
	case until > FullRefundWindow:
		return FullRefund(in.Amount)
	case until > 0:
		refund := in.Amount / 2
		return Split{Refund: refund, Payout: in.Amount - refund}
	default:
		return FullPayout(in.Amount)
	}
}

// Total is the amount accounted for by the split.
func (s Split) Total() int64 {
	return s.Refund + s.Payout
}
