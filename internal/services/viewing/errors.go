package viewing

import "errors"

var (
	ErrUnauthorized           = errors.New("caller is not allowed to perform this action")
	ErrNotFound               = errors.New("viewing request not found")
	ErrPropertyNotFound       = errors.New("property not found")
	ErrValidation             = errors.New("validation failed")
	ErrPaymentProvider        = errors.New("payment provider error")
	ErrDuplicateRequest       = errors.New("an active viewing request already exists for this property")
	ErrConcurrentModification = errors.New("viewing request was modified concurrently")
)
