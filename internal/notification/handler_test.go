package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/wa-storefront/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleEvent_InvalidPayload(t *testing.T) {
	h := NewHandler(nil)

	err := h.HandleEvent(context.Background(), []byte("ord-1"), []byte("{not json"))
	assert.Error(t, err)
}

func TestHandleEvent_NoEmailSkips(t *testing.T) {
	h := NewHandler(nil)

	payload, err := json.Marshal(order.OrderPlaced{
		OrderID: "ord-1",
		Total:   4500,
	})
	require.NoError(t, err)

	// No customer email: nothing to send, record is acked.
	assert.NoError(t, h.HandleEvent(context.Background(), []byte("ord-1"), payload))
}
