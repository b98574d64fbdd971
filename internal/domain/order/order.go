package order

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Order statuses. pending is the only status an order is ever created with;
// every later change comes from admin action or a payment webhook.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusConfirmed = "confirmed"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
)

var (
	ErrEmptyOrder      = errors.New("order must have at least one item")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrMissingCustomer = errors.New("customer info is required")
)

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusConfirmed: true,
	StatusShipped:   true,
	StatusDelivered: true,
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// CustomerInfo is the checkout form snapshot stored on the order as JSON.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Item is one order line, priced at checkout time.
type Item struct {
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	Price       float64         `json:"price"`
	ProductName string          `json:"product_name"`
	VariantInfo json.RawMessage `json:"variant_info,omitempty"`
}

// Order is a placed order. Orders are never deleted through the normal flow.
type Order struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id,omitempty"`
	CustomerInfo  CustomerInfo `json:"customer_info"`
	Total         float64      `json:"total"`
	Status        string       `json:"status"`
	PaymentMethod string       `json:"payment_method"`
	Items         []Item       `json:"items"`
	CreatedAt     time.Time    `json:"created_at"`
}

// EventOrderPlaced names the event published on the order stream when a
// checkout succeeds.
const EventOrderPlaced = "OrderPlaced"

// OrderPlaced is the order-stream record consumed by the notifier.
type OrderPlaced struct {
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id,omitempty"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Total         float64   `json:"total"`
	Items         []Item    `json:"items"`
	PlacedAt      time.Time `json:"placed_at"`
}

// Placed builds the stream record for an order.
func (o *Order) Placed() OrderPlaced {
	return OrderPlaced{
		OrderID:       o.ID,
		UserID:        o.UserID,
		CustomerName:  o.CustomerInfo.Name,
		CustomerEmail: o.CustomerInfo.Email,
		Total:         o.Total,
		Items:         o.Items,
		PlacedAt:      o.CreatedAt,
	}
}

// New builds a pending order from checkout inputs.
func New(userID string, customer CustomerInfo, paymentMethod string, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if customer.Name == "" || customer.Phone == "" {
		return nil, ErrMissingCustomer
	}

	o := &Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		CustomerInfo:  customer,
		Status:        StatusPending,
		PaymentMethod: paymentMethod,
		CreatedAt:     time.Now(),
	}
	for _, it := range items {
		it.OrderID = o.ID
		o.Total += it.Price * float64(it.Quantity)
		o.Items = append(o.Items, it)
	}
	return o, nil
}
