package escrow

import (
	"errors"
	"fmt"

	"viewly/internal/models"
)

var (
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrDisputeWindowExpired = errors.New("dispute window expired")
	ErrAlreadyConfirmed     = errors.New("already confirmed")
	ErrInvalidCommand       = errors.New("invalid command")
)

// TransitionError describes a rejected action. It matches ErrInvalidTransition.
type TransitionError struct {
	Action Action
	From   models.ViewingStatus
	Actor  Actor
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s from %s as %s", e.Action, e.From, e.Actor)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
