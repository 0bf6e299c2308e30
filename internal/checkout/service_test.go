package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/clothy-store/checkout-service/internal/catalog"
	"github.com/clothy-store/checkout-service/internal/payment"
	"github.com/clothy-store/checkout-service/internal/userdir"
)

type userDirStub struct {
	users map[string]userdir.User
}

func (s *userDirStub) FindByID(_ context.Context, id string) (userdir.User, error) {
	u, ok := s.users[id]
	if !ok {
		return userdir.User{}, userdir.ErrUserNotFound
	}
	return u, nil
}

type ledgerStub struct {
	mu        sync.Mutex
	createErr error
	purchases []Purchase
}

func (s *ledgerStub) Create(_ context.Context, p Purchase) (Purchase, error) {
	if s.createErr != nil {
		return Purchase{}, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = fmt.Sprintf("purchase-%d", len(s.purchases)+1)
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	s.purchases = append([]Purchase{p}, s.purchases...) // newest first
	return p, nil
}

func (s *ledgerStub) ListForUser(_ context.Context, userID string) ([]Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Purchase
	for _, p := range s.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type stockStub struct {
	mu          sync.Mutex
	failFor     map[string]error
	available   map[string]int // when set, decrements respect the floor
	decremented map[string]int
}

func (s *stockStub) DecrementStock(_ context.Context, productID string, qty int) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[productID]; ok {
		return catalog.Product{}, err
	}
	if s.available != nil {
		if s.available[productID] < qty {
			return catalog.Product{}, catalog.ErrInsufficientStock
		}
		s.available[productID] -= qty
	}
	if s.decremented == nil {
		s.decremented = make(map[string]int)
	}
	s.decremented[productID] += qty
	return catalog.Product{ID: productID}, nil
}

type gatewayStub struct {
	lastCreate payment.CreateParams
	createErr  error
	method     payment.PaymentMethod
	methodErr  error
}

func (s *gatewayStub) CreateIntent(_ context.Context, p payment.CreateParams) (payment.Authorization, error) {
	s.lastCreate = p
	if s.createErr != nil {
		return payment.Authorization{}, s.createErr
	}
	return payment.Authorization{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret",
		NextAction:   json.RawMessage(`{"type":"use_stripe_sdk"}`),
	}, nil
}

func (s *gatewayStub) RetrievePaymentMethod(_ context.Context, id string) (payment.PaymentMethod, error) {
	if s.methodErr != nil {
		return payment.PaymentMethod{}, s.methodErr
	}
	return s.method, nil
}

func (s *gatewayStub) CreateCustomer(context.Context) (string, error) {
	return "cus_created", nil
}

type customersStub struct{ id string }

func (s *customersStub) Ensure(context.Context, string) (string, error) {
	return s.id, nil
}

type idemStub struct {
	mu   sync.Mutex
	seen map[string]string
}

func idemKey(userID, ref string) string { return userID + "|" + ref }

func (s *idemStub) Seen(_ context.Context, userID, ref string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.seen[idemKey(userID, ref)]
	return id, ok
}

func (s *idemStub) Remember(_ context.Context, userID, ref, purchaseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]string)
	}
	s.seen[idemKey(userID, ref)] = purchaseID
}

type publisherStub struct {
	mu     sync.Mutex
	events []Envelope
}

func (s *publisherStub) Publish(_, value []byte, _ ...kafkago.Header) {
	var env Envelope
	_ = json.Unmarshal(value, &env)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, env)
}

func (s *publisherStub) byType(eventType string) []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Envelope
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	users     *userDirStub
	ledger    *ledgerStub
	stock     *stockStub
	gateway   *gatewayStub
	idem      *idemStub
	confirmed *publisherStub
	failed    *publisherStub
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		users: &userDirStub{users: map[string]userdir.User{
			"u1": {
				ID:        "u1",
				Username:  "alice",
				Email:     "alice@example.com",
				Phone:     "555-0100",
				CartTotal: decimal.RequireFromString("19.999"),
				Cart: []userdir.CartLine{
					{ProductID: "p1", Quantity: 2, Color: "red"},
					{ProductID: "p2", Quantity: 1, Color: "blue"},
				},
			},
		}},
		ledger:    &ledgerStub{},
		stock:     &stockStub{},
		gateway:   &gatewayStub{method: payment.PaymentMethod{ID: "pm_1", Type: "card", Brand: "visa"}},
		idem:      &idemStub{},
		confirmed: &publisherStub{},
		failed:    &publisherStub{},
	}
	f.svc = NewService(Dependencies{
		Users:                 f.users,
		Ledger:                f.ledger,
		Stock:                 f.stock,
		Gateway:               f.gateway,
		Customers:             &customersStub{id: "cus_42"},
		Idempotency:           f.idem,
		ConfirmedEvents:       f.confirmed,
		DecrementFailedEvents: f.failed,
		ProducerName:          "checkout-test",
	})
	return f
}

func TestInitiateUserNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Initiate(context.Background(), "missing", InitiateInput{PaymentMethodType: payment.MethodCard})
	require.ErrorIs(t, err, userdir.ErrUserNotFound)
}

func TestInitiateChargesMinorUnitsHalfUp(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Initiate(context.Background(), "u1", InitiateInput{PaymentMethodType: payment.MethodCard})
	require.NoError(t, err)
	require.Equal(t, "pi_1_secret", res.ClientSecret)
	require.Equal(t, int64(2000), f.gateway.lastCreate.AmountMinor)
	require.Equal(t, "usd", f.gateway.lastCreate.Currency)
	require.Equal(t, "name: alice, email: alice@example.com", f.gateway.lastCreate.Description)
	require.Nil(t, f.gateway.lastCreate.Mandate)
	require.False(t, f.gateway.lastCreate.AutoConfirm)
}

func TestInitiateACSSDebitMandate(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Initiate(context.Background(), "u1", InitiateInput{PaymentMethodType: payment.MethodACSSDebit, Currency: "cad"})
	require.NoError(t, err)
	require.Equal(t, "cad", f.gateway.lastCreate.Currency)
	require.NotNil(t, f.gateway.lastCreate.Mandate)
	require.Equal(t, "sporadic", f.gateway.lastCreate.Mandate.PaymentSchedule)
	require.Equal(t, "personal", f.gateway.lastCreate.Mandate.TransactionType)
}

func TestInitiateCustomerBalanceAutoConfirm(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Initiate(context.Background(), "u1", InitiateInput{PaymentMethodType: payment.MethodCustomerBalance})
	require.NoError(t, err)
	require.True(t, f.gateway.lastCreate.AutoConfirm)
	require.Equal(t, "cus_42", f.gateway.lastCreate.Customer)
}

func TestConfirmSnapshotsCart(t *testing.T) {
	f := newFixture()
	purchases, err := f.svc.Confirm(context.Background(), "u1", "pm_1", BillingDetails{Name: "Alice"})
	require.NoError(t, err)
	require.Len(t, purchases, 1)

	p := purchases[0]
	require.Equal(t, StatusPlaced, p.Status)
	require.Equal(t, "visa", p.PaymentMethod)
	require.True(t, p.TotalBill.Equal(decimal.RequireFromString("19.999")))
	require.False(t, p.PackageDate.IsZero())
	require.Len(t, p.Lines, 2)
	require.Equal(t, "p1", p.Lines[0].ProductID)
	require.Equal(t, 2, p.Lines[0].Quantity)
	require.Nil(t, p.Lines[0].Rating)

	// both decrements applied, one confirmed event out
	require.Equal(t, map[string]int{"p1": 2, "p2": 1}, f.stock.decremented)
	require.Len(t, f.confirmed.byType(EventCheckoutConfirmed), 1)
}

func TestConfirmUserNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Confirm(context.Background(), "missing", "pm_1", BillingDetails{})
	require.ErrorIs(t, err, userdir.ErrUserNotFound)
	require.Empty(t, f.stock.decremented)
}

func TestConfirmGatewayFailure(t *testing.T) {
	f := newFixture()
	f.gateway.methodErr = errors.New("gateway unreachable")
	_, err := f.svc.Confirm(context.Background(), "u1", "pm_1", BillingDetails{})
	require.ErrorIs(t, err, ErrPaymentMethod)
	require.Empty(t, f.ledger.purchases)
	require.Empty(t, f.stock.decremented)
}

func TestConfirmPersistFailureTouchesNoInventory(t *testing.T) {
	f := newFixture()
	f.ledger.createErr = errors.New("write did not apply")
	_, err := f.svc.Confirm(context.Background(), "u1", "pm_1", BillingDetails{})
	require.ErrorIs(t, err, ErrCheckoutPersist)
	require.Empty(t, f.stock.decremented)
	require.Empty(t, f.confirmed.events)
}

func TestConfirmDecrementFailureKeepsPurchaseVisible(t *testing.T) {
	f := newFixture()
	f.stock.failFor = map[string]error{"p2": catalog.ErrInsufficientStock}

	purchases, err := f.svc.Confirm(context.Background(), "u1", "pm_1", BillingDetails{})
	require.NoError(t, err)
	require.Len(t, purchases, 1, "purchase must stay visible despite the failed decrement")

	// the healthy line still applied, the failed one was reported
	require.Equal(t, map[string]int{"p1": 2}, f.stock.decremented)
	failed := f.failed.byType(EventStockDecrementFailed)
	require.Len(t, failed, 1)

	var payload DecrementFailedPayload
	require.NoError(t, json.Unmarshal(failed[0].Payload, &payload))
	require.Equal(t, purchases[0].ID, payload.PurchaseID)
	require.Equal(t, "p2", payload.ProductID)
	require.Equal(t, 1, payload.Quantity)
}

func TestConfirmRetryReturnsExistingPurchase(t *testing.T) {
	f := newFixture()

	first, err := f.svc.Confirm(context.Background(), "u1", "pm_1", BillingDetails{Name: "Alice"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// the client times out and retries the exact same confirmation
	second, err := f.svc.Confirm(context.Background(), "u1", "pm_1", BillingDetails{Name: "Alice"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)

	// one snapshot, one set of decrements, one confirmed event
	require.Len(t, f.ledger.purchases, 1)
	require.Equal(t, map[string]int{"p1": 2, "p2": 1}, f.stock.decremented)
	require.Len(t, f.confirmed.byType(EventCheckoutConfirmed), 1)
}

func TestConfirmConcurrentDecrementsRespectFloor(t *testing.T) {
	f := newFixture()
	f.stock.available = map[string]int{"p1": 3, "p2": 10}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, ref := range []string{"pm_a", "pm_b", "pm_c"} {
		ref := ref
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Confirm(context.Background(), "u1", ref, BillingDetails{})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// p1 had 3 in stock and each confirmation wants 2: only one decrement can
	// apply, the other two are reported, and the floor is never crossed
	require.Equal(t, 2, f.stock.decremented["p1"])
	require.Equal(t, 1, f.stock.available["p1"])
	require.Equal(t, 3, f.stock.decremented["p2"])
	require.Len(t, f.failed.byType(EventStockDecrementFailed), 2)
	require.Len(t, f.ledger.purchases, 3)
}

func TestConfirmSnapshotImmuneToLaterCartChanges(t *testing.T) {
	f := newFixture()
	purchases, err := f.svc.Confirm(context.Background(), "u1", "pm_1", BillingDetails{})
	require.NoError(t, err)
	firstTotal := purchases[0].TotalBill

	// the user keeps shopping; the stored snapshot must not move
	u := f.users.users["u1"]
	u.CartTotal = decimal.RequireFromString("99.99")
	u.Cart = append(u.Cart, userdir.CartLine{ProductID: "p3", Quantity: 5, Color: "green"})
	f.users.users["u1"] = u

	listed, err := f.ledger.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, listed[0].TotalBill.Equal(firstTotal))
	require.Len(t, listed[0].Lines, 2)
}
