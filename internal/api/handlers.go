package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/wa-storefront/internal/api/middleware"
	"github.com/example/wa-storefront/internal/checkout"
	"github.com/example/wa-storefront/internal/domain/cart"
	"github.com/example/wa-storefront/internal/domain/order"
	"github.com/example/wa-storefront/internal/domain/product"
	"github.com/example/wa-storefront/internal/infrastructure/store"
	"github.com/example/wa-storefront/internal/meta"
	"github.com/example/wa-storefront/internal/pixel"
	"github.com/example/wa-storefront/internal/tracking"
)

// ProductCatalog is the slice of product storage the handlers need.
type ProductCatalog interface {
	List(ctx context.Context) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Upsert(ctx context.Context, p product.Product) error
}

// OrderRepository is the slice of order storage the handlers need.
type OrderRepository interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
	ListAll(ctx context.Context) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// ConversionStats reports aggregated tracking counts for the admin panel.
type ConversionStats interface {
	DailyCounts(ctx context.Context, since time.Time) ([]store.DailyCount, error)
}

// Handlers handles the storefront HTTP requests.
type Handlers struct {
	products ProductCatalog
	carts    *cart.Service
	orders   OrderRepository
	checkout *checkout.Service
	stats    ConversionStats
	hub      *pixel.Hub
}

func NewHandlers(products ProductCatalog, carts *cart.Service, orders OrderRepository, co *checkout.Service, stats ConversionStats, hub *pixel.Hub) *Handlers {
	return &Handlers{
		products: products,
		carts:    carts,
		orders:   orders,
		checkout: co,
		stats:    stats,
		hub:      hub,
	}
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		log.Printf("[API] Failed to list products: %v", err)
		respondJSONError(w, "failed to list products", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/products/")
	if id == "" {
		respondJSONError(w, "product id is required", http.StatusBadRequest)
		return
	}

	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			respondJSONError(w, "product not found", http.StatusNotFound)
			return
		}
		log.Printf("[API] Failed to get product %s: %v", id, err)
		respondJSONError(w, "failed to get product", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var p product.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if p.ID == "" || p.Name == "" {
		respondJSONError(w, "product id and name are required", http.StatusBadRequest)
		return
	}

	if err := h.products.Upsert(r.Context(), p); err != nil {
		log.Printf("[API] Failed to upsert product %s: %v", p.ID, err)
		respondJSONError(w, "failed to save product", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Cart Handlers

// AddToCartRequest selects a product, a purchase type and its options.
type AddToCartRequest struct {
	ProductID         string `json:"product_id"`
	Quantity          int    `json:"quantity"`
	PurchaseType      string `json:"purchase_type"`
	SelectedColor     string `json:"selected_color"`
	SelectedCondition string `json:"selected_condition"`
	SelectedVariant   string `json:"selected_variant"`
}

// CartLineRequest identifies an existing line plus an optional new quantity.
type CartLineRequest struct {
	ProductID         string `json:"product_id"`
	PurchaseType      string `json:"purchase_type"`
	SelectedColor     string `json:"selected_color"`
	SelectedCondition string `json:"selected_condition"`
	Quantity          int    `json:"quantity"`
}

func (r CartLineRequest) key() cart.Key {
	return cart.Key{
		ID:                r.ProductID,
		PurchaseType:      r.PurchaseType,
		SelectedColor:     r.SelectedColor,
		SelectedCondition: r.SelectedCondition,
	}
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		log.Printf("[API] Failed to load cart: %v", err)
		respondJSONError(w, "failed to load cart", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == "" {
		respondJSONError(w, "product_id is required", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	p, err := h.products.Get(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			respondJSONError(w, "product not found", http.StatusNotFound)
			return
		}
		log.Printf("[API] Failed to get product %s: %v", req.ProductID, err)
		respondJSONError(w, "failed to get product", http.StatusInternalServerError)
		return
	}

	price, err := p.PriceFor(req.PurchaseType)
	if err != nil {
		respondJSONError(w, "product is not sold as "+req.PurchaseType, http.StatusBadRequest)
		return
	}

	purchaseType := req.PurchaseType
	if purchaseType == "" {
		purchaseType = cart.PurchaseUnit
	}

	c, err := h.carts.AddItem(r.Context(), middleware.GetSessionID(r.Context()), cart.Line{
		ID:                p.ID,
		Name:              p.Name,
		Price:             price,
		Quantity:          req.Quantity,
		PurchaseType:      purchaseType,
		SelectedColor:     req.SelectedColor,
		SelectedCondition: req.SelectedCondition,
		SelectedVariant:   req.SelectedVariant,
	})
	if err != nil {
		log.Printf("[API] Failed to add to cart: %v", err)
		respondJSONError(w, "failed to update cart", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	var req CartLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == "" {
		respondJSONError(w, "product_id is required", http.StatusBadRequest)
		return
	}

	c, err := h.carts.SetQuantity(r.Context(), middleware.GetSessionID(r.Context()), req.key(), req.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			respondJSONError(w, "cart line not found", http.StatusNotFound)
			return
		}
		log.Printf("[API] Failed to update cart line: %v", err)
		respondJSONError(w, "failed to update cart", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req CartLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == "" {
		respondJSONError(w, "product_id is required", http.StatusBadRequest)
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), middleware.GetSessionID(r.Context()), req.key())
	if err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			respondJSONError(w, "cart line not found", http.StatusNotFound)
			return
		}
		log.Printf("[API] Failed to remove cart line: %v", err)
		respondJSONError(w, "failed to update cart", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Checkout Handler

// CheckoutRequest is the order submission from the confirmation page.
type CheckoutRequest struct {
	Customer       order.CustomerInfo `json:"customer"`
	PaymentMethod  string             `json:"payment_method"`
	EventID        string             `json:"eventId"`
	EventSourceURL string             `json:"eventSourceUrl"`
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sid := middleware.GetSessionID(r.Context())
	in := checkout.Input{
		SessionID:     sid,
		UserID:        middleware.GetUserID(r.Context()),
		Customer:      req.Customer,
		PaymentMethod: req.PaymentMethod,
		Track:         trackContextForCheckout(r, sid, req),
	}

	result, err := h.checkout.Checkout(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			respondJSONError(w, "cart is empty", http.StatusBadRequest)
		case errors.Is(err, order.ErrMissingCustomer):
			respondJSONError(w, "customer name and phone are required", http.StatusBadRequest)
		default:
			log.Printf("[API] Checkout failed: %v", err)
			respondJSONError(w, "failed to place order", http.StatusInternalServerError)
		}
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// Order Handlers

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		log.Printf("[API] Failed to list orders: %v", err)
		respondJSONError(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	if id == "" {
		respondJSONError(w, "order id is required", http.StatusBadRequest)
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			respondJSONError(w, "order not found", http.StatusNotFound)
			return
		}
		log.Printf("[API] Failed to get order %s: %v", id, err)
		respondJSONError(w, "failed to get order", http.StatusInternalServerError)
		return
	}

	// Customers only see their own orders; admins see everything.
	claims, _ := middleware.GetUserFromContext(r.Context())
	if claims == nil || (claims.Role != "admin" && o.UserID != claims.UserID) {
		respondJSONError(w, "order not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Admin Handlers

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		log.Printf("[API] Failed to list all orders: %v", err)
		respondJSONError(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/admin/orders/"), "/status")
	if id == "" {
		respondJSONError(w, "order id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), id, req.Status); err != nil {
		switch {
		case errors.Is(err, order.ErrInvalidStatus):
			respondJSONError(w, "invalid order status", http.StatusBadRequest)
		case errors.Is(err, store.ErrOrderNotFound):
			respondJSONError(w, "order not found", http.StatusNotFound)
		default:
			log.Printf("[API] Failed to update order %s: %v", id, err)
			respondJSONError(w, "failed to update order", http.StatusInternalServerError)
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

func (h *Handlers) GetConversionStats(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondJSONError(w, "days must be a positive number", http.StatusBadRequest)
			return
		}
		days = n
	}

	counts, err := h.stats.DailyCounts(r.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		log.Printf("[API] Failed to load conversion stats: %v", err)
		respondJSONError(w, "failed to load stats", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// Pixel Handler

// DrainPixelQueue hands the session's queued browser pixel instructions to
// the page. Draining is destructive; each instruction is delivered once.
func (h *Handlers) DrainPixelQueue(w http.ResponseWriter, r *http.Request) {
	instructions := h.hub.Drain(middleware.GetSessionID(r.Context()))
	if instructions == nil {
		instructions = []pixel.Instruction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"instructions": instructions})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// trackContextForCheckout builds the purchase tracking context from the
// checkout form. The customer fields feed enhanced matching; the signed-in
// user ID, when present, becomes the external ID.
func trackContextForCheckout(r *http.Request, sessionID string, req CheckoutRequest) tracking.Context {
	first, last := splitName(req.Customer.Name)
	return tracking.Context{
		SessionID: sessionID,
		EventID:   req.EventID,
		SourceURL: req.EventSourceURL,
		User: meta.RawUser{
			UserID:    middleware.GetUserID(r.Context()),
			Email:     req.Customer.Email,
			Phone:     req.Customer.Phone,
			FirstName: first,
			LastName:  last,
			City:      req.Customer.City,
		},
		Request: meta.RequestContextFrom(r),
	}
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
