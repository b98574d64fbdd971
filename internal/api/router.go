package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/example/wa-storefront/internal/api/middleware"
	"github.com/example/wa-storefront/internal/auth"
)

// NewRouter wires the storefront routes. Every request gets a session cookie
// and an optional JWT identity; order history and the admin surface require
// authentication on top.
func NewRouter(handlers *Handlers, trackingHandlers *TrackingHandlers, authHandlers *AuthHandlers, jwtService *auth.JWTService, webDir string) http.Handler {
	mux := http.NewServeMux()

	requireAuth := middleware.AuthMiddleware(jwtService)
	requireAdmin := func(h http.HandlerFunc) http.Handler {
		return requireAuth(middleware.RequireRole("admin")(h))
	}

	// Static files (web UI)
	if webDir != "" {
		fs := http.FileServer(http.Dir(webDir))
		mux.Handle("/", fs)
	}

	// Products
	mux.Handle("/products", methodSwitch{
		http.MethodGet:  http.HandlerFunc(handlers.GetProducts),
		http.MethodPost: requireAdmin(handlers.UpsertProduct),
	})

	mux.Handle("/products/", methodSwitch{
		http.MethodGet: http.HandlerFunc(handlers.GetProduct),
	})

	// Cart
	mux.Handle("/cart", methodSwitch{
		http.MethodGet: http.HandlerFunc(handlers.GetCart),
	})

	mux.Handle("/cart/items", methodSwitch{
		http.MethodPost:   http.HandlerFunc(handlers.AddToCart),
		http.MethodPut:    http.HandlerFunc(handlers.UpdateCartLine),
		http.MethodDelete: http.HandlerFunc(handlers.RemoveFromCart),
	})

	// Checkout
	mux.Handle("/checkout", methodSwitch{
		http.MethodPost: http.HandlerFunc(handlers.Checkout),
	})

	// Orders
	mux.Handle("/orders", methodSwitch{
		http.MethodGet: requireAuth(http.HandlerFunc(handlers.GetOrders)),
	})

	mux.Handle("/orders/", methodSwitch{
		http.MethodGet: requireAuth(http.HandlerFunc(handlers.GetOrder)),
	})

	// Admin
	mux.Handle("/admin/orders", methodSwitch{
		http.MethodGet: requireAdmin(handlers.GetAllOrders),
	})

	mux.HandleFunc("/admin/orders/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/status") && r.Method == http.MethodPut {
			requireAdmin(handlers.UpdateOrderStatus).ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.Handle("/admin/conversions", methodSwitch{
		http.MethodGet: requireAdmin(handlers.GetConversionStats),
	})

	// Auth
	mux.Handle("/auth/register", methodSwitch{
		http.MethodPost: http.HandlerFunc(authHandlers.Register),
	})
	mux.Handle("/auth/login", methodSwitch{
		http.MethodPost: http.HandlerFunc(authHandlers.Login),
	})
	mux.Handle("/auth/logout", methodSwitch{
		http.MethodPost: http.HandlerFunc(authHandlers.Logout),
	})
	mux.Handle("/auth/refresh", methodSwitch{
		http.MethodPost: http.HandlerFunc(authHandlers.Refresh),
	})
	mux.Handle("/auth/me", methodSwitch{
		http.MethodGet: requireAuth(http.HandlerFunc(authHandlers.Me)),
	})

	// Server-side conversion tracking
	mux.Handle("/api/facebook/track-view", methodSwitch{
		http.MethodPost: http.HandlerFunc(trackingHandlers.TrackView),
	})
	mux.Handle("/api/facebook/track-add-to-cart", methodSwitch{
		http.MethodPost: http.HandlerFunc(trackingHandlers.TrackAddToCart),
	})
	mux.Handle("/api/facebook/track-checkout", methodSwitch{
		http.MethodPost: http.HandlerFunc(trackingHandlers.TrackCheckout),
	})
	mux.Handle("/api/facebook/track-purchase", methodSwitch{
		http.MethodPost: http.HandlerFunc(trackingHandlers.TrackPurchase),
	})
	mux.Handle("/api/facebook/track-registration", methodSwitch{
		http.MethodPost: http.HandlerFunc(trackingHandlers.TrackRegistration),
	})

	// Browser pixel instruction queue
	mux.Handle("/api/facebook/pixel-queue", methodSwitch{
		http.MethodGet: http.HandlerFunc(handlers.DrainPixelQueue),
	})

	var handler http.Handler = mux
	handler = middleware.OptionalAuthMiddleware(jwtService)(handler)
	handler = middleware.EnsureSession(handler)
	return withLogging(handler)
}

// methodSwitch routes by HTTP method and answers 405 otherwise.
type methodSwitch map[string]http.Handler

func (m methodSwitch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h.ServeHTTP(w, r)
		return
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
