package meta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Event Builder Tests
// ============================================

func TestViewContentData(t *testing.T) {
	cd := ViewContentData(Product{ID: "5", Name: "Taza", Price: 350})

	assert.Equal(t, 350.0, cd.Value)
	assert.Equal(t, "ARS", cd.Currency)
	assert.Equal(t, "Taza", cd.ContentName)
	assert.Equal(t, "product", cd.ContentType)
	assert.Equal(t, []string{"5"}, cd.ContentIDs)
}

func TestAddToCartData(t *testing.T) {
	cd := AddToCartData(Product{ID: "5", Name: "Taza", Price: 350}, 3)

	assert.Equal(t, 1050.0, cd.Value)
	require.Len(t, cd.Contents, 1)
	assert.Equal(t, 3, cd.Contents[0].Quantity)
}

func TestAddToCartData_DefaultsQuantity(t *testing.T) {
	cd := AddToCartData(Product{ID: "5", Price: 350}, 0)

	assert.Equal(t, 350.0, cd.Value)
	assert.Equal(t, 1, cd.Contents[0].Quantity)
}

func TestInitiateCheckoutData(t *testing.T) {
	cd := InitiateCheckoutData(CartSummary{
		Total: 800,
		Items: []CartSummaryItem{
			{ID: "1", Name: "Taza", Price: 350, Quantity: 2},
			{ID: "2", Name: "Plato", Price: 100, Quantity: 1},
		},
	})

	assert.Equal(t, 800.0, cd.Value)
	assert.Equal(t, 2, cd.NumItems)
	assert.Equal(t, []string{"1", "2"}, cd.ContentIDs)
}

func TestPurchaseData(t *testing.T) {
	cd := PurchaseData(OrderSummary{
		ID:    "10",
		Total: 500,
		Items: []OrderSummaryItem{
			{ProductID: "1", Quantity: 2, Price: 100, ProductName: "X"},
		},
	})

	// The order total is deliberately not mapped onto value.
	assert.Zero(t, cd.Value)
	require.Len(t, cd.Contents, 1)
	assert.Equal(t, Content{
		ID:               "1",
		Quantity:         2,
		ItemPrice:        100,
		Title:            "X",
		DeliveryCategory: "home_delivery",
	}, cd.Contents[0])
}

func TestPurchaseData_ValueOmittedOnWire(t *testing.T) {
	cd := PurchaseData(OrderSummary{
		Items: []OrderSummaryItem{{ProductID: "1", Quantity: 2, Price: 100, ProductName: "X"}},
	})
	ev := NewEvent(EventPurchase, "evt-1", "https://x/y", UserData{}, cd)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	custom := decoded["custom_data"].(map[string]any)

	_, hasValue := custom["value"]
	assert.False(t, hasValue)
	assert.Equal(t, "website", decoded["action_source"])
}

func TestNewEvent_Envelope(t *testing.T) {
	ev := NewEvent(EventAddToCart, "evt-2", "https://shop.example/p/5", UserData{}, nil)

	assert.Equal(t, EventAddToCart, ev.EventName)
	assert.Equal(t, "evt-2", ev.EventID)
	assert.Equal(t, "https://shop.example/p/5", ev.EventSourceURL)
	assert.Equal(t, "website", ev.ActionSource)
	assert.Positive(t, ev.EventTime)
	assert.Nil(t, ev.CustomData)
}
