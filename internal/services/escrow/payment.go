package escrow

import (
	"time"

	"viewly/internal/models"
)

// ApplyPayment records the provider's verdict on the tenant's payment.
//
// A successful payment moves the escrow from pending to held. If the request
// was already cancelled or expired while the payment was in flight, the held
// fee is refunded straight away. Repeated notifications are no-ops.
func (m *Machine) ApplyPayment(v *models.Viewing, succeeded bool, now time.Time) (*Result, error) {
	now = now.UTC()
	next := v.Clone()
	res := &Result{Viewing: next}
	tx := &next.Transaction

	if !succeeded {
		if tx.PaymentStatus == models.PaymentPending {
			tx.PaymentStatus = models.PaymentFailed
			tx.UpdatedAt = now
		}
		return res, nil
	}

	if tx.EscrowStatus != models.EscrowPending {
		return res, nil
	}
	tx.PaymentStatus = models.PaymentCompleted
	tx.EscrowStatus = models.EscrowHeld
	tx.UpdatedAt = now

	if next.Request.Status.IsActive() {
		res.Events = append(res.Events, event(next.Request.LandlordID, next, models.EventPaymentReceived, now, map[string]interface{}{
			"amount":   tx.Amount,
			"currency": tx.Currency,
		}))
		return res, nil
	}

	if err := m.settle(next, FullRefund(tx.Amount), now, res); err != nil {
		return nil, err
	}
	return res, nil
}
