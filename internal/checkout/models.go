package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

type Address struct {
	Country    string `json:"country"`
	City       string `json:"city"`
	State      string `json:"state"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type BillingDetails struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address Address `json:"address"`
}

// PurchaseLine is one cart entry frozen into a purchase. Rating stays nil
// until the buyer rates the delivered line.
type PurchaseLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
	Rating    *int   `json:"rating,omitempty"`
}

// Purchase is an immutable snapshot of the cart at confirmation time.
// TotalBill and Lines are never recomputed from the catalog afterwards.
type Purchase struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Status        Status          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	TotalBill     decimal.Decimal `json:"total_bill"`
	PackageDate   time.Time       `json:"package_date"`
	ArriveDate    *time.Time      `json:"arrive_date,omitempty"`
	Billing       BillingDetails  `json:"billing_details"`
	Lines         []PurchaseLine  `json:"products"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
