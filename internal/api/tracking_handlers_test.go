package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/wa-storefront/internal/api/middleware"
	"github.com/example/wa-storefront/internal/meta"
	"github.com/example/wa-storefront/internal/pixel"
	"github.com/example/wa-storefront/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTracker() (*tracking.Tracker, *pixel.Hub) {
	hub := pixel.NewHub()
	// Empty config keeps the CAPI channel disabled; the pixel queue still
	// records instructions.
	return tracking.NewTracker(meta.NewDispatcher(meta.Config{}), hub, nil), hub
}

func trackRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	ctx := context.WithValue(r.Context(), middleware.SessionContextKey, "sess-1")
	return r.WithContext(ctx)
}

func TestTrackView_Success(t *testing.T) {
	tracker, hub := testTracker()
	h := NewTrackingHandlers(tracker)

	w := httptest.NewRecorder()
	h.TrackView(w, trackRequest(t, "/api/facebook/track-view", map[string]any{
		"product": map[string]any{"id": "42", "name": "Lámpara", "price": 1500},
		"eventId": "evt-1",
	}))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp trackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// CAPI disabled: handled, but no server response.
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)

	// The pixel channel still got the event, tagged with the shared ID.
	instructions := hub.Drain("sess-1")
	require.Len(t, instructions, 1)
	assert.Equal(t, meta.EventViewContent, instructions[0].Event)
	assert.Equal(t, "evt-1", instructions[0].EventID)
}

func TestTrackView_MissingProduct(t *testing.T) {
	tracker, _ := testTracker()
	h := NewTrackingHandlers(tracker)

	w := httptest.NewRecorder()
	h.TrackView(w, trackRequest(t, "/api/facebook/track-view", map[string]any{
		"eventId": "evt-1",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackView_InvalidBody(t *testing.T) {
	tracker, _ := testTracker()
	h := NewTrackingHandlers(tracker)

	r := httptest.NewRequest(http.MethodPost, "/api/facebook/track-view", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.TrackView(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackAddToCart_RequiresQuantity(t *testing.T) {
	tracker, _ := testTracker()
	h := NewTrackingHandlers(tracker)

	w := httptest.NewRecorder()
	h.TrackAddToCart(w, trackRequest(t, "/api/facebook/track-add-to-cart", map[string]any{
		"product": map[string]any{"id": "42", "name": "Lámpara", "price": 1500},
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackAddToCart_Success(t *testing.T) {
	tracker, hub := testTracker()
	h := NewTrackingHandlers(tracker)

	w := httptest.NewRecorder()
	h.TrackAddToCart(w, trackRequest(t, "/api/facebook/track-add-to-cart", map[string]any{
		"product":  map[string]any{"id": "42", "name": "Lámpara", "price": 1500},
		"quantity": 3,
	}))

	assert.Equal(t, http.StatusOK, w.Code)

	instructions := hub.Drain("sess-1")
	require.Len(t, instructions, 1)
	assert.Equal(t, meta.EventAddToCart, instructions[0].Event)
}

func TestTrackCheckout_RequiresCart(t *testing.T) {
	tracker, _ := testTracker()
	h := NewTrackingHandlers(tracker)

	w := httptest.NewRecorder()
	h.TrackCheckout(w, trackRequest(t, "/api/facebook/track-checkout", map[string]any{
		"cart": map[string]any{"items": []any{}},
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackPurchase_RequiresOrder(t *testing.T) {
	tracker, _ := testTracker()
	h := NewTrackingHandlers(tracker)

	w := httptest.NewRecorder()
	h.TrackPurchase(w, trackRequest(t, "/api/facebook/track-purchase", map[string]any{
		"user": map[string]any{"email": "a@b.com"},
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackPurchase_Success(t *testing.T) {
	tracker, hub := testTracker()
	h := NewTrackingHandlers(tracker)

	w := httptest.NewRecorder()
	h.TrackPurchase(w, trackRequest(t, "/api/facebook/track-purchase", map[string]any{
		"order": map[string]any{
			"id":    "ord-1",
			"total": 4500,
			"items": []map[string]any{
				{"product_id": "42", "product_name": "Lámpara", "price": 1500, "quantity": 3},
			},
		},
		"user": map[string]any{"email": "a@b.com"},
	}))

	assert.Equal(t, http.StatusOK, w.Code)

	instructions := hub.Drain("sess-1")
	require.Len(t, instructions, 1)
	assert.Equal(t, meta.EventPurchase, instructions[0].Event)
}

func TestTrackRegistration_RequiresUser(t *testing.T) {
	tracker, _ := testTracker()
	h := NewTrackingHandlers(tracker)

	w := httptest.NewRecorder()
	h.TrackRegistration(w, trackRequest(t, "/api/facebook/track-registration", map[string]any{
		"eventSourceUrl": "https://shop.example/registro",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
