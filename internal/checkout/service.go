// Package checkout turns a session's cart into a persisted order and the
// follow-up artifacts the storefront needs: the WhatsApp handoff link, an
// optional Mercado Pago payment link, the order stream record, and the
// Purchase tracking event. Only the order insert can fail a checkout;
// everything after it degrades gracefully.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/example/wa-storefront/internal/domain/cart"
	"github.com/example/wa-storefront/internal/domain/order"
	"github.com/example/wa-storefront/internal/meta"
	"github.com/example/wa-storefront/internal/payments"
	"github.com/example/wa-storefront/internal/tracking"
	"github.com/example/wa-storefront/internal/whatsapp"
)

var ErrEmptyCart = errors.New("cart is empty")

// OrderStore is the slice of order persistence checkout needs.
type OrderStore interface {
	Create(ctx context.Context, o *order.Order) error
}

// PreferenceCreator creates payment preferences.
type PreferenceCreator interface {
	CreatePreference(ctx context.Context, o *order.Order) (*payments.Preference, error)
}

// PurchaseTracker is the tracking entry point checkout fires.
type PurchaseTracker interface {
	TrackPurchase(ctx context.Context, tc tracking.Context, o meta.OrderSummary) *meta.ServerResponse
}

// Publisher publishes to the order event stream.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Input is one checkout submission.
type Input struct {
	SessionID     string
	UserID        string
	Customer      order.CustomerInfo
	PaymentMethod string
	// Track carries the tracking context of the submitting request.
	Track tracking.Context
}

// Result is what the storefront renders on the confirmation page.
type Result struct {
	Order        *order.Order `json:"order"`
	WhatsAppLink string       `json:"whatsapp_link"`
	PaymentLink  string       `json:"payment_link,omitempty"`
}

type Service struct {
	carts     *cart.Service
	orders    OrderStore
	payments  PreferenceCreator
	tracker   PurchaseTracker
	publisher Publisher
	shopPhone string
}

func NewService(carts *cart.Service, orders OrderStore, pay PreferenceCreator, tracker PurchaseTracker, publisher Publisher, shopPhone string) *Service {
	return &Service{
		carts:     carts,
		orders:    orders,
		payments:  pay,
		tracker:   tracker,
		publisher: publisher,
		shopPhone: shopPhone,
	}
}

// Checkout places an order from the session's cart.
func (s *Service) Checkout(ctx context.Context, in Input) (*Result, error) {
	c, err := s.carts.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	items := make([]order.Item, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, order.Item{
			ProductID:   l.ID,
			Quantity:    l.Quantity,
			Price:       l.Price,
			ProductName: l.Name,
			VariantInfo: variantInfo(l),
		})
	}

	o, err := order.New(in.UserID, in.Customer, in.PaymentMethod, items)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, in.SessionID); err != nil {
		log.Printf("[Checkout] Failed to clear cart for session %s: %v", in.SessionID, err)
	}

	result := &Result{
		Order:        o,
		WhatsAppLink: whatsapp.Link(s.shopPhone, whatsapp.OrderMessage(o)),
	}

	if s.payments != nil {
		if pref, err := s.payments.CreatePreference(ctx, o); err != nil {
			log.Printf("[Checkout] Payment preference failed for order %s: %v", o.ID, err)
		} else {
			result.PaymentLink = pref.InitPoint
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, o.ID, o.Placed()); err != nil {
			log.Printf("[Checkout] Failed to publish OrderPlaced for %s: %v", o.ID, err)
		}
	}

	if s.tracker != nil {
		// Detached from the request: a slow Graph API call must not delay
		// confirmation rendering, and the dispatch may outlive the request.
		trackCtx := context.WithoutCancel(ctx)
		track, summary := in.Track, orderSummary(o)
		go s.tracker.TrackPurchase(trackCtx, track, summary)
	}

	return result, nil
}

func orderSummary(o *order.Order) meta.OrderSummary {
	s := meta.OrderSummary{ID: o.ID, Total: o.Total}
	for _, it := range o.Items {
		s.Items = append(s.Items, meta.OrderSummaryItem{
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			Price:       it.Price,
			ProductName: it.ProductName,
		})
	}
	return s
}

// variantInfo snapshots a line's selection onto the order item.
func variantInfo(l cart.Line) json.RawMessage {
	if l.PurchaseType == "" && l.SelectedColor == "" && l.SelectedCondition == "" && l.SelectedVariant == "" {
		return nil
	}
	raw, err := json.Marshal(map[string]string{
		"purchaseType":      l.PurchaseType,
		"selectedColor":     l.SelectedColor,
		"selectedCondition": l.SelectedCondition,
		"selectedVariant":   l.SelectedVariant,
	})
	if err != nil {
		return nil
	}
	return raw
}
