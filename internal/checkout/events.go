package checkout

import (
	"encoding/json"
	"time"
)

const (
	EventCheckoutConfirmed    = "CheckoutConfirmed"
	EventStockDecrementFailed = "StockDecrementFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // purchase_id
	Payload       json.RawMessage `json:"payload"`
}

type LineQty struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
}

type CheckoutConfirmedPayload struct {
	PurchaseID string    `json:"purchase_id"`
	UserID     string    `json:"user_id"`
	TotalBill  string    `json:"total_bill"`
	Lines      []LineQty `json:"lines"`
}

// DecrementFailedPayload is the reconciliation record for a stock decrement
// that did not apply after the purchase was already persisted.
type DecrementFailedPayload struct {
	PurchaseID string `json:"purchase_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
}
