package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/example/wa-storefront/internal/api/middleware"
	"github.com/example/wa-storefront/internal/meta"
	"github.com/example/wa-storefront/internal/tracking"
)

// TrackingHandlers exposes the /api/facebook/* endpoints the storefront page
// posts its commerce events to. Responses are always HTTP 200 with
// {success, data} once the body validates; dispatch failures surface as
// success=false, never as an error status.
type TrackingHandlers struct {
	tracker *tracking.Tracker
}

func NewTrackingHandlers(tracker *tracking.Tracker) *TrackingHandlers {
	return &TrackingHandlers{tracker: tracker}
}

// trackResponse is the envelope every tracking endpoint answers with.
type trackResponse struct {
	Success bool                 `json:"success"`
	Data    *meta.ServerResponse `json:"data"`
}

func respondTrack(w http.ResponseWriter, resp *meta.ServerResponse) {
	respondJSON(w, http.StatusOK, trackResponse{Success: resp != nil, Data: resp})
}

// trackContext assembles the per-request tracking context from the session,
// the posted body fields, and the ambient request signals.
func trackContext(r *http.Request, eventID, sourceURL string, user meta.RawUser) tracking.Context {
	return tracking.Context{
		SessionID: middleware.GetSessionID(r.Context()),
		EventID:   eventID,
		SourceURL: sourceURL,
		User:      user,
		Request:   meta.RequestContextFrom(r),
	}
}

// guard converts a panic below the tracking boundary into a 500 instead of
// taking the whole connection down.
func guard(w http.ResponseWriter, r *http.Request, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[API] Panic handling %s: %v", r.URL.Path, rec)
			respondJSONError(w, "internal error", http.StatusInternalServerError)
		}
	}()
	fn()
}

func (h *TrackingHandlers) TrackView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Product        *meta.Product `json:"product"`
		User           meta.RawUser  `json:"user"`
		EventSourceURL string        `json:"eventSourceUrl"`
		EventID        string        `json:"eventId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Product == nil || req.Product.ID == "" {
		respondJSONError(w, "product is required", http.StatusBadRequest)
		return
	}

	guard(w, r, func() {
		resp := h.tracker.TrackViewContent(r.Context(),
			trackContext(r, req.EventID, req.EventSourceURL, req.User), *req.Product)
		respondTrack(w, resp)
	})
}

func (h *TrackingHandlers) TrackAddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Product        *meta.Product `json:"product"`
		Quantity       int           `json:"quantity"`
		User           meta.RawUser  `json:"user"`
		EventSourceURL string        `json:"eventSourceUrl"`
		EventID        string        `json:"eventId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Product == nil || req.Product.ID == "" {
		respondJSONError(w, "product is required", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		respondJSONError(w, "quantity is required", http.StatusBadRequest)
		return
	}

	guard(w, r, func() {
		resp := h.tracker.TrackAddToCart(r.Context(),
			trackContext(r, req.EventID, req.EventSourceURL, req.User), *req.Product, req.Quantity)
		respondTrack(w, resp)
	})
}

func (h *TrackingHandlers) TrackCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cart           *meta.CartSummary `json:"cart"`
		User           meta.RawUser      `json:"user"`
		EventSourceURL string            `json:"eventSourceUrl"`
		EventID        string            `json:"eventId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Cart == nil || len(req.Cart.Items) == 0 {
		respondJSONError(w, "cart is required", http.StatusBadRequest)
		return
	}

	guard(w, r, func() {
		resp := h.tracker.TrackInitiateCheckout(r.Context(),
			trackContext(r, req.EventID, req.EventSourceURL, req.User), *req.Cart)
		respondTrack(w, resp)
	})
}

func (h *TrackingHandlers) TrackPurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Order          *meta.OrderSummary `json:"order"`
		User           meta.RawUser       `json:"user"`
		EventSourceURL string             `json:"eventSourceUrl"`
		EventID        string             `json:"eventId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Order == nil || req.Order.ID == "" {
		respondJSONError(w, "order is required", http.StatusBadRequest)
		return
	}

	guard(w, r, func() {
		resp := h.tracker.TrackPurchase(r.Context(),
			trackContext(r, req.EventID, req.EventSourceURL, req.User), *req.Order)
		respondTrack(w, resp)
	})
}

func (h *TrackingHandlers) TrackRegistration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User           meta.RawUser `json:"user"`
		EventSourceURL string       `json:"eventSourceUrl"`
		EventID        string       `json:"eventId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User.Email == "" && req.User.UserID == "" && req.User.ID == "" {
		respondJSONError(w, "user is required", http.StatusBadRequest)
		return
	}

	guard(w, r, func() {
		resp := h.tracker.TrackRegistration(r.Context(),
			trackContext(r, req.EventID, req.EventSourceURL, req.User))
		respondTrack(w, resp)
	})
}
