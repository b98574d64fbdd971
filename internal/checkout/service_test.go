package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/wa-storefront/internal/domain/cart"
	"github.com/example/wa-storefront/internal/domain/order"
	"github.com/example/wa-storefront/internal/meta"
	"github.com/example/wa-storefront/internal/payments"
	"github.com/example/wa-storefront/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory collaborators.

type memCartStore struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func (m *memCartStore) Load(_ context.Context, sid string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[sid], nil
}

func (m *memCartStore) Save(_ context.Context, sid string, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sid] = c
	return nil
}

type fakeOrderStore struct {
	created []*order.Order
	err     error
}

func (f *fakeOrderStore) Create(_ context.Context, o *order.Order) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, o)
	return nil
}

type fakePayments struct {
	pref *payments.Preference
	err  error
}

func (f *fakePayments) CreatePreference(context.Context, *order.Order) (*payments.Preference, error) {
	return f.pref, f.err
}

// fakeTracker records purchase dispatches; they arrive from a detached
// goroutine, so access is lock-guarded. A non-nil block channel stalls the
// dispatch until released.
type fakeTracker struct {
	mu     sync.Mutex
	block  chan struct{}
	orders []meta.OrderSummary
}

func (f *fakeTracker) TrackPurchase(_ context.Context, _ tracking.Context, o meta.OrderSummary) *meta.ServerResponse {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o)
	return nil
}

func (f *fakeTracker) tracked() []meta.OrderSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]meta.OrderSummary(nil), f.orders...)
}

type fakePublisher struct {
	events []any
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func seededService(t *testing.T, orders OrderStore, pay PreferenceCreator, tracker PurchaseTracker, pub Publisher) (*Service, *cart.Service) {
	t.Helper()
	carts := cart.NewService(&memCartStore{carts: make(map[string]*cart.Cart)})
	_, err := carts.AddItem(context.Background(), "sid-1", cart.Line{
		ID: "1", Name: "X", Price: 100, Quantity: 2, PurchaseType: cart.PurchaseUnit,
	})
	require.NoError(t, err)
	return NewService(carts, orders, pay, tracker, pub, "+54 9 11 1234 5678"), carts
}

func customer() order.CustomerInfo {
	return order.CustomerInfo{Name: "Juan", Phone: "5491112345678", Email: "a@b.com"}
}

// ============================================
// Checkout Tests
// ============================================

func TestCheckout_Success(t *testing.T) {
	orders := &fakeOrderStore{}
	tracker := &fakeTracker{}
	pub := &fakePublisher{}
	svc, carts := seededService(t, orders, &fakePayments{pref: &payments.Preference{InitPoint: "https://mp/pay"}}, tracker, pub)

	res, err := svc.Checkout(context.Background(), Input{
		SessionID:     "sid-1",
		UserID:        "u-1",
		Customer:      customer(),
		PaymentMethod: "mercadopago",
	})

	require.NoError(t, err)
	require.Len(t, orders.created, 1)
	assert.Equal(t, order.StatusPending, res.Order.Status)
	assert.Equal(t, 200.0, res.Order.Total)
	assert.Contains(t, res.WhatsAppLink, "https://wa.me/5491112345678?text=")
	assert.Equal(t, "https://mp/pay", res.PaymentLink)

	// Cart cleared wholesale after success.
	c, err := carts.Get(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	// Purchase tracking fired with the order mapping, off the request path.
	require.Eventually(t, func() bool { return len(tracker.tracked()) == 1 },
		time.Second, 5*time.Millisecond)
	tracked := tracker.tracked()
	assert.Equal(t, res.Order.ID, tracked[0].ID)
	require.Len(t, tracked[0].Items, 1)
	assert.Equal(t, "X", tracked[0].Items[0].ProductName)

	// OrderPlaced published for the notifier.
	require.Len(t, pub.events, 1)
	placed := pub.events[0].(order.OrderPlaced)
	assert.Equal(t, res.Order.ID, placed.OrderID)
	assert.Equal(t, "a@b.com", placed.CustomerEmail)
}

func TestCheckout_EmptyCart(t *testing.T) {
	carts := cart.NewService(&memCartStore{carts: make(map[string]*cart.Cart)})
	svc := NewService(carts, &fakeOrderStore{}, nil, nil, nil, "5491112345678")

	_, err := svc.Checkout(context.Background(), Input{SessionID: "nobody", Customer: customer()})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_OrderInsertFailureAborts(t *testing.T) {
	orders := &fakeOrderStore{err: errors.New("db down")}
	svc, carts := seededService(t, orders, nil, nil, nil)

	_, err := svc.Checkout(context.Background(), Input{SessionID: "sid-1", Customer: customer()})
	require.Error(t, err)

	// The cart survives a failed checkout.
	c, err := carts.Get(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.False(t, c.IsEmpty())
}

func TestCheckout_PaymentFailureDegrades(t *testing.T) {
	orders := &fakeOrderStore{}
	svc, _ := seededService(t, orders, &fakePayments{err: payments.ErrNotConfigured}, nil, nil)

	res, err := svc.Checkout(context.Background(), Input{SessionID: "sid-1", Customer: customer()})

	require.NoError(t, err)
	assert.Empty(t, res.PaymentLink)
	assert.NotEmpty(t, res.WhatsAppLink)
	assert.Len(t, orders.created, 1)
}

func TestCheckout_PublishFailureDoesNotFailOrder(t *testing.T) {
	orders := &fakeOrderStore{}
	svc, _ := seededService(t, orders, nil, nil, &fakePublisher{err: errors.New("broker down")})

	res, err := svc.Checkout(context.Background(), Input{SessionID: "sid-1", Customer: customer()})

	require.NoError(t, err)
	assert.NotNil(t, res.Order)
}

func TestCheckout_SlowTrackingDoesNotDelayConfirmation(t *testing.T) {
	release := make(chan struct{})
	tracker := &fakeTracker{block: release}
	orders := &fakeOrderStore{}
	svc, _ := seededService(t, orders, nil, tracker, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Checkout(context.Background(), Input{SessionID: "sid-1", Customer: customer()})
		assert.NoError(t, err)
	}()

	// Checkout returns while the dispatch is still stalled.
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checkout waited for the tracking dispatch")
	}

	close(release)
	require.Eventually(t, func() bool { return len(tracker.tracked()) == 1 },
		time.Second, 5*time.Millisecond)
}

func TestCheckout_VariantInfoSnapshot(t *testing.T) {
	orders := &fakeOrderStore{}
	carts := cart.NewService(&memCartStore{carts: make(map[string]*cart.Cart)})
	_, err := carts.AddItem(context.Background(), "sid-1", cart.Line{
		ID: "1", Name: "X", Price: 100, Quantity: 1,
		PurchaseType: cart.PurchasePack, SelectedColor: "rojo",
	})
	require.NoError(t, err)

	svc := NewService(carts, orders, nil, nil, nil, "5491112345678")
	_, err = svc.Checkout(context.Background(), Input{SessionID: "sid-1", Customer: customer()})
	require.NoError(t, err)

	require.Len(t, orders.created, 1)
	variant := string(orders.created[0].Items[0].VariantInfo)
	assert.Contains(t, variant, `"purchaseType":"paquete"`)
	assert.Contains(t, variant, `"selectedColor":"rojo"`)
}
