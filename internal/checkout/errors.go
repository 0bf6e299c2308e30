package checkout

import "errors"

var (
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrLineNotFound      = errors.New("purchase line not found")
	ErrPaymentMethod     = errors.New("payment method not found")
	ErrCheckoutPersist   = errors.New("failed to persist checkout")
	ErrInvalidTransition = errors.New("invalid status transition")
)
