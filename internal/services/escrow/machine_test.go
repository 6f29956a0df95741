package escrow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewly/internal/models"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testMachine() *Machine {
	m := NewMachine()
	m.NewID = func() string { return "payout-1" }
	return m
}

func scheduledViewing(at time.Time) *models.Viewing {
	v := pendingViewing()
	v.Request.Status = models.StatusScheduled
	v.Request.ScheduledDate = &at
	v.Transaction.EscrowStatus = models.EscrowHeld
	v.Transaction.PaymentStatus = models.PaymentCompleted
	return v
}

func pendingViewing() *models.Viewing {
	return &models.Viewing{
		Request: models.ViewingRequest{
			ID:         "vr-1",
			PropertyID: "prop-1",
			TenantID:   "tenant-1",
			LandlordID: "landlord-1",
			PreferredDates: models.DateList{
				base.Add(48 * time.Hour),
				base.Add(72 * time.Hour),
				base.Add(96 * time.Hour),
			},
			Status:  models.StatusPending,
			Version: 1,
		},
		Transaction: models.Transaction{
			ID:               "tx-1",
			ViewingRequestID: "vr-1",
			TenantID:         "tenant-1",
			Amount:           5000,
			Currency:         "USD",
			PaymentStatus:    models.PaymentPending,
			EscrowStatus:     models.EscrowPending,
		},
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	v := scheduledViewing(base.Add(time.Hour))
	before := *v.Clone()

	res, err := testMachine().Apply(v, Command{Action: ActionCancel, Actor: ActorTenant, Now: base, Reason: "sick"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelledByTenant, res.Viewing.Request.Status)
	assert.Equal(t, before, *v)
}

func TestApply_Cancel(t *testing.T) {
	m := testMachine()

	t.Run("tenant within 24h splits", func(t *testing.T) {
		res, err := m.Apply(scheduledViewing(base.Add(10*time.Hour)), Command{Action: ActionCancel, Actor: ActorTenant, Now: base, Reason: "sick"})
		require.NoError(t, err)

		r, tx := res.Viewing.Request, res.Viewing.Transaction
		assert.Equal(t, models.StatusCancelledByTenant, r.Status)
		require.NotNil(t, r.CancelledBy)
		assert.Equal(t, models.PartyTenant, *r.CancelledBy)
		assert.Equal(t, "sick", r.CancellationReason)
		assert.Equal(t, Split{Refund: 2500, Payout: 2500}, res.Split)
		assert.Equal(t, models.EscrowReleased, tx.EscrowStatus)
		assert.Equal(t, int64(2500), res.RefundDue)
		require.NotNil(t, res.Payout)
		assert.Equal(t, int64(2500), res.Payout.Amount)
		assert.Equal(t, "landlord-1", res.Payout.LandlordID)
		assert.Equal(t, models.PayoutPending, res.Payout.Status)
		assert.True(t, res.Resolved)
		assert.Len(t, res.Events, 2)
	})

	t.Run("landlord refunds in full", func(t *testing.T) {
		res, err := m.Apply(scheduledViewing(base.Add(time.Hour)), Command{Action: ActionCancel, Actor: ActorLandlord, Now: base})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelledByLandlord, res.Viewing.Request.Status)
		assert.Equal(t, models.EscrowRefunded, res.Viewing.Transaction.EscrowStatus)
		assert.Nil(t, res.Payout)
		assert.Equal(t, int64(5000), res.RefundDue)
	})

	t.Run("tenant after viewing time pays landlord", func(t *testing.T) {
		res, err := m.Apply(scheduledViewing(base.Add(-time.Minute)), Command{Action: ActionCancel, Actor: ActorTenant, Now: base})
		require.NoError(t, err)
		assert.Equal(t, models.EscrowReleased, res.Viewing.Transaction.EscrowStatus)
		assert.Zero(t, res.RefundDue)
		require.NotNil(t, res.Payout)
		assert.Equal(t, int64(5000), res.Payout.Amount)
	})

	t.Run("admin on behalf of tenant uses tenant rules", func(t *testing.T) {
		res, err := m.Apply(scheduledViewing(base.Add(time.Hour)), Command{Action: ActionCancel, Actor: ActorAdmin, OnBehalfOf: ActorTenant, Now: base})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelledByTenant, res.Viewing.Request.Status)
		assert.Equal(t, Split{Refund: 2500, Payout: 2500}, res.Split)
	})

	t.Run("admin defaults to landlord attribution", func(t *testing.T) {
		res, err := m.Apply(scheduledViewing(base.Add(time.Hour)), Command{Action: ActionCancel, Actor: ActorAdmin, Now: base})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelledByLandlord, res.Viewing.Request.Status)
		assert.Equal(t, FullRefund(5000), res.Split)
	})

	t.Run("unpaid pending request moves no money", func(t *testing.T) {
		res, err := m.Apply(pendingViewing(), Command{Action: ActionCancel, Actor: ActorTenant, Now: base})
		require.NoError(t, err)
		assert.Equal(t, models.EscrowPending, res.Viewing.Transaction.EscrowStatus)
		assert.Nil(t, res.Payout)
		assert.Zero(t, res.RefundDue)
		assert.False(t, res.Resolved)
	})

	t.Run("terminal request cannot be cancelled", func(t *testing.T) {
		v := scheduledViewing(base.Add(time.Hour))
		v.Request.Status = models.StatusCompleted
		_, err := m.Apply(v, Command{Action: ActionCancel, Actor: ActorTenant, Now: base})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestApply_NoShowAndDispute(t *testing.T) {
	m := testMachine()
	claimAt := base.Add(2 * time.Hour)

	reported, err := m.Apply(scheduledViewing(base.Add(time.Hour)), Command{Action: ActionReportNoShow, Actor: ActorLandlord, Now: claimAt, Reason: "nobody came"})
	require.NoError(t, err)
	r := reported.Viewing.Request
	assert.Equal(t, models.StatusTenantNoShow, r.Status)
	require.NotNil(t, r.DisputeDeadline)
	assert.Equal(t, claimAt.Add(24*time.Hour), *r.DisputeDeadline)
	assert.Equal(t, FullPayout(5000), reported.Split)
	assert.Equal(t, models.EscrowHeld, reported.Viewing.Transaction.EscrowStatus)
	assert.Nil(t, reported.Payout)

	t.Run("dispute inside window freezes funds", func(t *testing.T) {
		res, err := m.Apply(reported.Viewing, Command{Action: ActionDisputeNoShow, Actor: ActorTenant, Now: claimAt.Add(23 * time.Hour), Evidence: "photo at the door"})
		require.NoError(t, err)
		assert.Equal(t, models.StatusDisputed, res.Viewing.Request.Status)
		assert.Equal(t, Split{}, res.Split)
		assert.Equal(t, models.EscrowHeld, res.Viewing.Transaction.EscrowStatus)
		assert.Nil(t, res.Payout)
		assert.Equal(t, "photo at the door", res.Viewing.Request.DisputeEvidence)
	})

	t.Run("dispute at the deadline is accepted", func(t *testing.T) {
		_, err := m.Apply(reported.Viewing, Command{Action: ActionDisputeNoShow, Actor: ActorTenant, Now: claimAt.Add(24 * time.Hour)})
		assert.NoError(t, err)
	})

	t.Run("dispute after window is rejected", func(t *testing.T) {
		_, err := m.Apply(reported.Viewing, Command{Action: ActionDisputeNoShow, Actor: ActorTenant, Now: claimAt.Add(25 * time.Hour)})
		assert.ErrorIs(t, err, ErrDisputeWindowExpired)
	})

	t.Run("landlord cannot dispute", func(t *testing.T) {
		_, err := m.Apply(reported.Viewing, Command{Action: ActionDisputeNoShow, Actor: ActorLandlord, Now: claimAt.Add(time.Hour)})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("finalize before window lapses is rejected", func(t *testing.T) {
		_, err := m.Apply(reported.Viewing, Command{Action: ActionFinalizeNoShow, Actor: ActorSystem, Now: claimAt.Add(24 * time.Hour)})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("finalize after window pays landlord", func(t *testing.T) {
		res, err := m.Apply(reported.Viewing, Command{Action: ActionFinalizeNoShow, Actor: ActorSystem, Now: claimAt.Add(25 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, models.StatusTenantNoShow, res.Viewing.Request.Status)
		assert.Equal(t, models.EscrowReleased, res.Viewing.Transaction.EscrowStatus)
		require.NotNil(t, res.Payout)
		assert.Equal(t, int64(5000), res.Payout.Amount)
	})

	t.Run("tenant cannot report no-show", func(t *testing.T) {
		_, err := m.Apply(scheduledViewing(base), Command{Action: ActionReportNoShow, Actor: ActorTenant, Now: base})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("no-show requires a scheduled viewing", func(t *testing.T) {
		_, err := m.Apply(pendingViewing(), Command{Action: ActionReportNoShow, Actor: ActorLandlord, Now: base})
		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, models.StatusPending, te.From)
	})
}

func TestApply_ResolveDispute(t *testing.T) {
	m := testMachine()
	v := scheduledViewing(base)
	v.Request.Status = models.StatusDisputed

	tests := []struct {
		outcome models.ViewingStatus
		escrow  models.EscrowStatus
		split   Split
	}{
		{models.StatusCompleted, models.EscrowReleased, FullPayout(5000)},
		{models.StatusCancelledByTenant, models.EscrowReleased, FullPayout(5000)},
		{models.StatusCancelledByLandlord, models.EscrowRefunded, FullRefund(5000)},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			res, err := m.Apply(v, Command{Action: ActionResolveDispute, Actor: ActorAdmin, Outcome: tt.outcome, Now: base})
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Viewing.Request.Status)
			assert.Equal(t, tt.escrow, res.Viewing.Transaction.EscrowStatus)
			assert.Equal(t, tt.split, res.Split)
		})
	}

	_, err := m.Apply(v, Command{Action: ActionResolveDispute, Actor: ActorAdmin, Outcome: models.StatusExpired, Now: base})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = m.Apply(v, Command{Action: ActionResolveDispute, Actor: ActorTenant, Outcome: models.StatusCompleted, Now: base})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApply_Confirm(t *testing.T) {
	m := testMachine()

	confirmBoth := func(first, second Actor) *Result {
		v := scheduledViewing(base.Add(-time.Hour))
		res1, err := m.Apply(v, Command{Action: ActionConfirm, Actor: first, Now: base})
		require.NoError(t, err)
		assert.Equal(t, models.StatusScheduled, res1.Viewing.Request.Status)
		assert.Equal(t, models.EscrowHeld, res1.Viewing.Transaction.EscrowStatus)
		assert.Nil(t, res1.Payout)
		assert.False(t, res1.BothConfirmed)

		res2, err := m.Apply(res1.Viewing, Command{Action: ActionConfirm, Actor: second, Now: base})
		require.NoError(t, err)
		return res2
	}

	a := confirmBoth(ActorTenant, ActorLandlord)
	b := confirmBoth(ActorLandlord, ActorTenant)

	for _, res := range []*Result{a, b} {
		assert.True(t, res.BothConfirmed)
		assert.Equal(t, models.StatusCompleted, res.Viewing.Request.Status)
		assert.Equal(t, models.EscrowReleased, res.Viewing.Transaction.EscrowStatus)
		require.NotNil(t, res.Payout)
		assert.Equal(t, int64(5000), res.Payout.Amount)
	}
	assert.Equal(t, a.Viewing.Request.Status, b.Viewing.Request.Status)
	assert.Equal(t, a.Viewing.Transaction, b.Viewing.Transaction)
	assert.Equal(t, a.Split, b.Split)

	t.Run("same party twice", func(t *testing.T) {
		v := scheduledViewing(base)
		res, err := m.Apply(v, Command{Action: ActionConfirm, Actor: ActorTenant, Now: base})
		require.NoError(t, err)

		again, err := m.Apply(res.Viewing, Command{Action: ActionConfirm, Actor: ActorTenant, Now: base.Add(time.Minute)})
		assert.ErrorIs(t, err, ErrAlreadyConfirmed)
		assert.Nil(t, again)
		assert.False(t, res.Viewing.Request.LandlordConfirmed)
		assert.Equal(t, models.StatusScheduled, res.Viewing.Request.Status)
	})

	t.Run("repeat after completion", func(t *testing.T) {
		for _, actor := range []Actor{ActorTenant, ActorLandlord} {
			again, err := m.Apply(a.Viewing, Command{Action: ActionConfirm, Actor: actor, Now: base.Add(time.Minute)})
			assert.ErrorIs(t, err, ErrAlreadyConfirmed)
			assert.Nil(t, again)
		}
	})

	t.Run("admin cannot confirm", func(t *testing.T) {
		_, err := m.Apply(scheduledViewing(base), Command{Action: ActionConfirm, Actor: ActorAdmin, Now: base})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestApply_Schedule(t *testing.T) {
	m := testMachine()
	paid := func() *models.Viewing {
		v := pendingViewing()
		v.Transaction.EscrowStatus = models.EscrowHeld
		v.Transaction.PaymentStatus = models.PaymentCompleted
		return v
	}

	res, err := m.Apply(paid(), Command{Action: ActionSchedule, Actor: ActorLandlord, Now: base, ScheduledDate: base.Add(72 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, res.Viewing.Request.Status)
	require.NotNil(t, res.Viewing.Request.ScheduledDate)
	assert.Equal(t, base.Add(72*time.Hour), *res.Viewing.Request.ScheduledDate)

	_, err = m.Apply(paid(), Command{Action: ActionSchedule, Actor: ActorLandlord, Now: base, ScheduledDate: base.Add(5 * time.Hour)})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = m.Apply(pendingViewing(), Command{Action: ActionSchedule, Actor: ActorLandlord, Now: base, ScheduledDate: base.Add(72 * time.Hour)})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApply_Expire(t *testing.T) {
	m := testMachine()
	v := pendingViewing()
	v.Transaction.EscrowStatus = models.EscrowHeld

	res, err := m.Apply(v, Command{Action: ActionExpire, Actor: ActorSystem, Now: base})
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, res.Viewing.Request.Status)
	assert.Equal(t, models.EscrowRefunded, res.Viewing.Transaction.EscrowStatus)
	assert.Equal(t, int64(5000), res.RefundDue)

	_, err = m.Apply(scheduledViewing(base), Command{Action: ActionExpire, Actor: ActorSystem, Now: base})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyPayment(t *testing.T) {
	m := testMachine()

	t.Run("success holds escrow", func(t *testing.T) {
		res, err := m.ApplyPayment(pendingViewing(), true, base)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentCompleted, res.Viewing.Transaction.PaymentStatus)
		assert.Equal(t, models.EscrowHeld, res.Viewing.Transaction.EscrowStatus)
		assert.Len(t, res.Events, 1)
	})

	t.Run("duplicate success is a no-op", func(t *testing.T) {
		first, err := m.ApplyPayment(pendingViewing(), true, base)
		require.NoError(t, err)
		second, err := m.ApplyPayment(first.Viewing, true, base)
		require.NoError(t, err)
		assert.Equal(t, first.Viewing.Transaction, second.Viewing.Transaction)
		assert.Empty(t, second.Events)
	})

	t.Run("failure marks payment failed", func(t *testing.T) {
		res, err := m.ApplyPayment(pendingViewing(), false, base)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentFailed, res.Viewing.Transaction.PaymentStatus)
		assert.Equal(t, models.EscrowPending, res.Viewing.Transaction.EscrowStatus)
	})

	t.Run("late payment on cancelled request is refunded", func(t *testing.T) {
		v := pendingViewing()
		v.Request.Status = models.StatusCancelledByTenant
		res, err := m.ApplyPayment(v, true, base)
		require.NoError(t, err)
		assert.Equal(t, models.EscrowRefunded, res.Viewing.Transaction.EscrowStatus)
		assert.Equal(t, int64(5000), res.RefundDue)
	})
}
