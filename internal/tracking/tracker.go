// Package tracking orchestrates the dual-channel delivery of commerce
// events: a browser pixel fire and a server-side Conversions API dispatch,
// deduplicated downstream via one shared event ID. Tracking is strictly
// best-effort; no failure here may ever surface to the business operation
// that triggered it.
package tracking

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/example/wa-storefront/internal/meta"
	"github.com/example/wa-storefront/internal/pixel"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewEventID generates the shared deduplication ID for one logical event:
// unix milliseconds, an underscore, and nine random base36 characters.
func NewEventID() string {
	b := make([]byte, 9)
	for i := range b {
		b[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + string(b)
}

// Publisher is the event-stream sink for tracked events (Kafka in
// production). Publish failures are swallowed like any tracking failure.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// StreamEvent is the record published per tracked event for downstream
// projection into conversion stats.
type StreamEvent struct {
	Name      string    `json:"name"`
	EventID   string    `json:"event_id"`
	Value     float64   `json:"value,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	TrackedAt time.Time `json:"tracked_at"`
}

// Context carries the per-request inputs of one Track call.
type Context struct {
	// SessionID selects the browser session's pixel queue; empty means no
	// live page (pixel fires become no-ops).
	SessionID string
	// EventID, when set, is the client-generated deduplication ID. A fresh
	// one is generated otherwise.
	EventID string
	// SourceURL is the page URL the action happened on, captured at call
	// time.
	SourceURL string
	User      meta.RawUser
	Request   meta.RequestContext
}

// Tracker is the dual-channel orchestrator.
type Tracker struct {
	dispatcher *meta.Dispatcher
	hub        *pixel.Hub
	publisher  Publisher

	mu       sync.Mutex
	matching map[string]*MatchingManager
}

func NewTracker(dispatcher *meta.Dispatcher, hub *pixel.Hub, publisher Publisher) *Tracker {
	return &Tracker{
		dispatcher: dispatcher,
		hub:        hub,
		publisher:  publisher,
		matching:   make(map[string]*MatchingManager),
	}
}

// maxManagers bounds the per-session matching state; cookie-less clients
// mint a fresh session per request, so the map cannot grow unchecked.
const (
	maxManagers = 10000
	managerTTL  = 30 * time.Minute
)

// Matching returns the enhanced-matching manager for a session, creating it
// on first use.
func (t *Tracker) Matching(sessionID string) *MatchingManager {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.matching[sessionID]
	if !ok {
		if len(t.matching) >= maxManagers {
			t.evictMatchingLocked()
		}
		m = NewMatchingManager(t.hub.Session(sessionID))
		t.matching[sessionID] = m
	}
	m.touch()
	return m
}

// evictMatchingLocked prunes idle managers, then the stalest one if the map
// is still at capacity.
func (t *Tracker) evictMatchingLocked() {
	cutoff := time.Now().Add(-managerTTL)
	for id, m := range t.matching {
		if m.seen().Before(cutoff) {
			delete(t.matching, id)
		}
	}
	if len(t.matching) < maxManagers {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, m := range t.matching {
		if seen := m.seen(); oldestID == "" || seen.Before(oldest) {
			oldestID, oldest = id, seen
		}
	}
	delete(t.matching, oldestID)
}

// ClearMatching resets a session's enhanced matching on sign-out and drops
// its manager. The reset instruction stays queued on the session's pixel
// queue so the page can apply it; unknown sessions are a no-op rather than
// allocating state.
func (t *Tracker) ClearMatching(sessionID string) {
	t.mu.Lock()
	m, ok := t.matching[sessionID]
	if ok {
		delete(t.matching, sessionID)
	}
	t.mu.Unlock()

	if ok {
		m.Clear()
	}
}

func (t *Tracker) TrackViewContent(ctx context.Context, tc Context, p meta.Product) *meta.ServerResponse {
	return t.track(ctx, meta.EventViewContent, tc, meta.ViewContentData(p))
}

func (t *Tracker) TrackAddToCart(ctx context.Context, tc Context, p meta.Product, quantity int) *meta.ServerResponse {
	return t.track(ctx, meta.EventAddToCart, tc, meta.AddToCartData(p, quantity))
}

func (t *Tracker) TrackInitiateCheckout(ctx context.Context, tc Context, cart meta.CartSummary) *meta.ServerResponse {
	return t.track(ctx, meta.EventInitiateCheckout, tc, meta.InitiateCheckoutData(cart))
}

func (t *Tracker) TrackPurchase(ctx context.Context, tc Context, order meta.OrderSummary) *meta.ServerResponse {
	return t.track(ctx, meta.EventPurchase, tc, meta.PurchaseData(order))
}

func (t *Tracker) TrackRegistration(ctx context.Context, tc Context) *meta.ServerResponse {
	return t.track(ctx, meta.EventCompleteRegistration, tc, meta.RegistrationData())
}

// track runs the dual dispatch for one logical event:
//
//  1. resolve the shared event ID,
//  2. refresh enhanced matching when identity is known,
//  3. fire the pixel instruction (always initiated before the server
//     dispatch; the two channels are otherwise independent deliveries),
//  4. send the Conversions API event and return its receipt.
func (t *Tracker) track(ctx context.Context, name string, tc Context, cd *meta.CustomData) *meta.ServerResponse {
	eventID := tc.EventID
	if eventID == "" {
		eventID = NewEventID()
	}

	if identity := MatchingIdentity(tc.User); len(identity) > 0 {
		t.Matching(tc.SessionID).Setup(identity)
	}

	t.hub.Session(tc.SessionID).Fire(name, pixelPayload(cd), eventID)

	event := meta.NewEvent(name, eventID, tc.SourceURL, meta.PrepareUserData(tc.User, tc.Request), cd)
	resp := t.dispatcher.Send(ctx, event)

	t.publish(ctx, name, eventID, tc.SourceURL, cd)

	return resp
}

func (t *Tracker) publish(ctx context.Context, name, eventID, sourceURL string, cd *meta.CustomData) {
	if t.publisher == nil {
		return
	}

	se := StreamEvent{
		Name:      name,
		EventID:   eventID,
		SourceURL: sourceURL,
		TrackedAt: time.Now(),
	}
	if cd != nil {
		se.Value = cd.Value
		se.Currency = cd.Currency
	}

	if err := t.publisher.Publish(ctx, eventID, se); err != nil {
		log.Printf("[Tracker] Failed to publish %s to event stream: %v", name, err)
	}
}

// pixelPayload flattens custom data into the loose map shape fbq expects.
func pixelPayload(cd *meta.CustomData) map[string]any {
	if cd == nil {
		return nil
	}
	raw, err := json.Marshal(cd)
	if err != nil {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}
