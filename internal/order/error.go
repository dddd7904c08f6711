package order

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderItemNotFound   = errors.New("order item not found")
	ErrOrderUserRequired   = errors.New("order must have a user_id")
	ErrNegativeTotal       = errors.New("order total cannot be negative")
	ErrItemQuantity        = errors.New("item quantity must be positive")
	ErrItemProductRequired = errors.New("item must have a product_id")
	ErrInvalidInput        = errors.New("invalid order input")
	ErrUserRequired        = errors.New("user id is required to create an order")
	ErrEmptyCart           = errors.New("cannot create order with empty cart")
	ErrInvalidCartItem     = errors.New("invalid cart item: must have product or combo")
)
