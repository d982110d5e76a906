package orders

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrUnauthorized      = errors.New("not authorized for this order")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("invalid order")
	ErrUpstreamPayment   = errors.New("payment network error")
)
