package payment

import "errors"

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentOrderRequired = errors.New("payment must have an order_id")
	ErrPaymentUserRequired  = errors.New("payment must have a user_id")
	ErrPaymentAmount        = errors.New("payment amount must be positive")
	ErrOrderIDRequired      = errors.New("orderId is required")
	ErrNoPayments           = errors.New("at least one payment is required")
	ErrInvalidInput         = errors.New("invalid payment input")
)
