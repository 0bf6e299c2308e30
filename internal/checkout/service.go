package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clothy-store/checkout-service/internal/catalog"
	"github.com/clothy-store/checkout-service/internal/kafka"
	"github.com/clothy-store/checkout-service/internal/payment"
	"github.com/clothy-store/checkout-service/internal/userdir"
)

type UserDirectory interface {
	FindByID(ctx context.Context, id string) (userdir.User, error)
}

type PurchaseStore interface {
	Create(ctx context.Context, p Purchase) (Purchase, error)
	ListForUser(ctx context.Context, userID string) ([]Purchase, error)
}

type Inventory interface {
	DecrementStock(ctx context.Context, productID string, qty int) (catalog.Product, error)
}

type Customers interface {
	Ensure(ctx context.Context, userID string) (string, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Idempotency remembers which (user, payment method) confirmations already
// produced a purchase, so retries do not snapshot the cart twice.
type Idempotency interface {
	Seen(ctx context.Context, userID, paymentMethodRef string) (string, bool)
	Remember(ctx context.Context, userID, paymentMethodRef, purchaseID string)
}

// Service drives the checkout flow: payment authorization up front, then
// purchase persistence plus inventory adjustment on confirmation.
type Service struct {
	users     UserDirectory
	ledger    PurchaseStore
	stock     Inventory
	gateway   payment.Gateway
	customers Customers
	idem      Idempotency

	confirmed       Publisher
	decrementFailed Publisher
	producerName    string

	log *zap.Logger
	now func() time.Time
}

type Dependencies struct {
	Users       UserDirectory
	Ledger      PurchaseStore
	Stock       Inventory
	Gateway     payment.Gateway
	Customers   Customers
	Idempotency Idempotency

	ConfirmedEvents       Publisher
	DecrementFailedEvents Publisher
	ProducerName          string

	Logger *zap.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:           deps.Users,
		ledger:          deps.Ledger,
		stock:           deps.Stock,
		gateway:         deps.Gateway,
		customers:       deps.Customers,
		idem:            deps.Idempotency,
		confirmed:       deps.ConfirmedEvents,
		decrementFailed: deps.DecrementFailedEvents,
		producerName:    deps.ProducerName,
		log:             log,
		now:             time.Now,
	}
}

type InitiateInput struct {
	PaymentMethodType string
	Currency          string
}

type InitiateResult struct {
	ClientSecret string          `json:"clientSecret"`
	NextAction   json.RawMessage `json:"nextAction"`
}

// Initiate creates a payment authorization for the user's current cart total.
// It has no side effect beyond the external authorization.
func (s *Service) Initiate(ctx context.Context, userID string, in InitiateInput) (InitiateResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return InitiateResult{}, err
	}

	currency := in.Currency
	if currency == "" {
		currency = "usd"
	}
	params := payment.CreateParams{
		AmountMinor: payment.MinorUnits(user.CartTotal),
		Currency:    currency,
		Description: fmt.Sprintf("name: %s, email: %s", user.Username, user.Email),
		MethodType:  in.PaymentMethodType,
	}
	switch in.PaymentMethodType {
	case payment.MethodACSSDebit:
		params.Mandate = &payment.MandateOptions{
			PaymentSchedule: "sporadic",
			TransactionType: "personal",
		}
	case payment.MethodCustomerBalance:
		customer, err := s.customers.Ensure(ctx, userID)
		if err != nil {
			return InitiateResult{}, err
		}
		params.Customer = customer
		params.AutoConfirm = true
	}

	auth, err := s.gateway.CreateIntent(ctx, params)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("create payment authorization: %w", err)
	}
	return InitiateResult{ClientSecret: auth.ClientSecret, NextAction: auth.NextAction}, nil
}

// Confirm turns the user's cart into a purchase. The purchase snapshot is
// persisted first; only then are the per-line stock decrements issued,
// concurrently and each independently atomic. A failed decrement never rolls
// the purchase back — it is logged and published for reconciliation.
func (s *Service) Confirm(ctx context.Context, userID, paymentMethodRef string, billing BillingDetails) ([]Purchase, error) {
	if s.idem != nil {
		if id, ok := s.idem.Seen(ctx, userID, paymentMethodRef); ok {
			s.log.Info("confirm replay, returning existing purchases",
				zap.String("user_id", userID),
				zap.String("purchase_id", id))
			return s.ledger.ListForUser(ctx, userID)
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	method, err := s.gateway.RetrievePaymentMethod(ctx, paymentMethodRef)
	if err != nil {
		s.log.Error("retrieve payment method",
			zap.String("user_id", userID),
			zap.String("payment_method", paymentMethodRef),
			zap.Error(err))
		return nil, ErrPaymentMethod
	}

	now := s.now().UTC()
	lines := make([]PurchaseLine, 0, len(user.Cart))
	for _, it := range user.Cart {
		lines = append(lines, PurchaseLine{ProductID: it.ProductID, Quantity: it.Quantity, Color: it.Color})
	}
	purchase := Purchase{
		UserID:        userID,
		Status:        StatusPlaced,
		PaymentMethod: method.Brand,
		TotalBill:     user.CartTotal,
		PackageDate:   now,
		Billing:       billing,
		Lines:         lines,
	}

	stored, err := s.ledger.Create(ctx, purchase)
	if err != nil {
		s.log.Error("persist purchase", zap.String("user_id", userID), zap.Error(err))
		return nil, ErrCheckoutPersist
	}
	if s.idem != nil {
		s.idem.Remember(ctx, userID, paymentMethodRef, stored.ID)
	}

	var g errgroup.Group
	for _, ln := range stored.Lines {
		ln := ln
		g.Go(func() error {
			if _, err := s.stock.DecrementStock(ctx, ln.ProductID, ln.Quantity); err != nil {
				s.log.Error("stock decrement failed",
					zap.String("purchase_id", stored.ID),
					zap.String("product_id", ln.ProductID),
					zap.Int("quantity", ln.Quantity),
					zap.Error(err))
				s.publishDecrementFailed(stored.ID, ln, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.publishConfirmed(stored)

	return s.ledger.ListForUser(ctx, userID)
}

func (s *Service) publishConfirmed(p Purchase) {
	if s.confirmed == nil {
		return
	}
	lines := make([]LineQty, 0, len(p.Lines))
	for _, ln := range p.Lines {
		lines = append(lines, LineQty{ProductID: ln.ProductID, Quantity: ln.Quantity, Color: ln.Color})
	}
	s.publish(s.confirmed, EventCheckoutConfirmed, p.ID, CheckoutConfirmedPayload{
		PurchaseID: p.ID,
		UserID:     p.UserID,
		TotalBill:  p.TotalBill.String(),
		Lines:      lines,
	})
}

func (s *Service) publishDecrementFailed(purchaseID string, ln PurchaseLine, cause error) {
	if s.decrementFailed == nil {
		return
	}
	s.publish(s.decrementFailed, EventStockDecrementFailed, purchaseID, DecrementFailedPayload{
		PurchaseID: purchaseID,
		ProductID:  ln.ProductID,
		Quantity:   ln.Quantity,
		Reason:     cause.Error(),
	})
}

func (s *Service) publish(pub Publisher, eventType, purchaseID string, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.producerName,
		CorrelationID: purchaseID,
		Payload:       kafka.MustMarshal(payload),
	}
	pub.Publish(PartitionKey(purchaseID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
