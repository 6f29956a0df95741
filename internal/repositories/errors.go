package repositories

import "errors"

var (
	ErrViewingNotFound        = errors.New("viewing request not found")
	ErrConcurrentModification = errors.New("viewing request was modified concurrently")
	ErrDuplicateActiveRequest = errors.New("an active viewing request already exists")
	ErrPayoutExists           = errors.New("payout already exists for transaction")
	ErrPropertyNotFound       = errors.New("property not found")
)
