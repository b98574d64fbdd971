// Package pixel delivers browser-side tracking instructions. The storefront
// page drains a per-session queue and replays each instruction through the
// in-page fbq snippet, so the pixel channel and the Conversions API channel
// report the same event under one shared event ID.
package pixel

import (
	"sync"
	"time"
)

const (
	KindTrack = "track"
	KindInit  = "init"
)

// Instruction is one pending fbq call for the page to execute.
type Instruction struct {
	Kind     string            `json:"kind"`
	Event    string            `json:"event,omitempty"`
	EventID  string            `json:"event_id,omitempty"`
	Payload  map[string]any    `json:"payload,omitempty"`
	Identity map[string]string `json:"identity,omitempty"`
}

// Dispatcher is the pixel channel seen by the tracker. Fire is
// fire-and-forget: a session with no live page is a silent no-op, mirroring
// a pixel snippet that never loaded.
type Dispatcher interface {
	Fire(eventName string, payload map[string]any, eventID string)
	Init(identity map[string]string)
}

// Hub holds the per-session instruction queues.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// maxSessions bounds the hub; cookie-less clients mint a fresh session per
// request, so creation alone must not grow the map unchecked.
const (
	maxSessions = 10000
	sessionTTL  = 30 * time.Minute
)

// Session returns the queue for a session ID, creating it on first use.
// An empty session ID yields a no-op dispatcher.
func (h *Hub) Session(id string) Dispatcher {
	if id == "" {
		return nopDispatcher{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[id]
	if !ok {
		if len(h.sessions) >= maxSessions {
			h.evictLocked()
		}
		s = &Session{lastSeen: time.Now()}
		h.sessions[id] = s
	}
	return s
}

// evictLocked prunes sessions while the hub is at capacity: idle sessions
// first, then drained ones, then the stalest remaining queue.
func (h *Hub) evictLocked() {
	cutoff := time.Now().Add(-sessionTTL)
	for id, s := range h.sessions {
		if s.seen().Before(cutoff) {
			delete(h.sessions, id)
		}
	}
	if len(h.sessions) < maxSessions {
		return
	}

	for id, s := range h.sessions {
		if s.empty() {
			delete(h.sessions, id)
		}
	}
	if len(h.sessions) < maxSessions {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, s := range h.sessions {
		if seen := s.seen(); oldestID == "" || seen.Before(oldest) {
			oldestID, oldest = id, seen
		}
	}
	delete(h.sessions, oldestID)
}

// Drain removes and returns all pending instructions for a session.
func (h *Hub) Drain(id string) []Instruction {
	h.mu.Lock()
	s, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return s.drain()
}

// Forget drops a session's queue entirely, for sign-out.
func (h *Hub) Forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// maxQueued bounds a queue for pages that never drain; oldest entries are
// dropped first since a stale pixel fire has no attribution value.
const maxQueued = 100

// Session is one browser session's pending instruction queue.
type Session struct {
	mu       sync.Mutex
	pending  []Instruction
	lastSeen time.Time
}

func (s *Session) Fire(eventName string, payload map[string]any, eventID string) {
	s.push(Instruction{
		Kind:    KindTrack,
		Event:   eventName,
		EventID: eventID,
		Payload: payload,
	})
}

func (s *Session) Init(identity map[string]string) {
	s.push(Instruction{
		Kind:     KindInit,
		Identity: identity,
	})
}

func (s *Session) push(in Instruction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	s.pending = append(s.pending, in)
	if len(s.pending) > maxQueued {
		s.pending = s.pending[len(s.pending)-maxQueued:]
	}
}

func (s *Session) drain() []Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	out := s.pending
	s.pending = nil
	return out
}

func (s *Session) seen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0
}

type nopDispatcher struct{}

func (nopDispatcher) Fire(string, map[string]any, string) {}
func (nopDispatcher) Init(map[string]string)              {}
