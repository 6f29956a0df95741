/*
Package escrow holds the rules that decide what happens to a viewing fee.

It has two halves, both free of I/O:

  - the money policy (Compute) splits a fee between a tenant refund and a
    landlord payout; the two parts always add up to the fee;
  - the state machine (Machine.Apply) checks that an action is legal from the
    current status for the acting party, updates a copy of the viewing, and
    returns the payout to create, the refund to issue and the notifications to
    send once the change is committed.

Callers own persistence. A Result is only meaningful if the returned viewing is
stored atomically with its payout.

Usage:

	m := escrow.NewMachine()
	res, err := m.Apply(viewing, escrow.Command{
	    Action: escrow.ActionCancel,
	    Actor:  escrow.ActorTenant,
	    Now:    time.Now(),
	    Reason: "found another place",
	})

Error Handling:

  - ErrInvalidTransition: action not allowed from the current status or for the actor
  - ErrDisputeWindowExpired: no-show disputed after the deadline
  - ErrAlreadyConfirmed: the same party confirmed twice
  - ErrInvalidCommand: the command is malformed (bad date, bad outcome)
*/
package escrow
