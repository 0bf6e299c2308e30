// Package payment wraps the external payment gateway: creating payment
// authorizations, retrieving realized payment methods and managing gateway
// customer identities.
package payment

import (
	"context"
	"encoding/json"
)

const (
	MethodCard            = "card"
	MethodACSSDebit       = "acss_debit"
	MethodCustomerBalance = "customer_balance"
)

// MandateOptions are attached for scheduled/recurring debit method types.
type MandateOptions struct {
	PaymentSchedule string
	TransactionType string
}

type CreateParams struct {
	AmountMinor int64
	Currency    string
	Description string
	MethodType  string
	Mandate     *MandateOptions
	Customer    string
	AutoConfirm bool
}

// Authorization is the gateway's record permitting a charge. It is immutable
// from this service's perspective.
type Authorization struct {
	ID           string
	ClientSecret string
	NextAction   json.RawMessage
}

type PaymentMethod struct {
	ID    string
	Type  string
	Brand string // card brand, empty for non-card methods
}

type Gateway interface {
	CreateIntent(ctx context.Context, p CreateParams) (Authorization, error)
	RetrievePaymentMethod(ctx context.Context, id string) (PaymentMethod, error)
	CreateCustomer(ctx context.Context) (string, error)
}
