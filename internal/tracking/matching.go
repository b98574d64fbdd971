package tracking

import (
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/example/wa-storefront/internal/meta"
	"github.com/example/wa-storefront/internal/pixel"
)

// MatchingIdentity builds the advanced-matching subset of identity fields
// from a raw user: lowercased and trimmed, with phone reduced to digits.
// Absent fields are left out entirely.
func MatchingIdentity(user meta.RawUser) map[string]string {
	identity := make(map[string]string)

	put := func(key, value string) {
		v := strings.ToLower(strings.TrimSpace(value))
		if v != "" {
			identity[key] = v
		}
	}

	put("em", user.Email)
	put("ph", digitsOnly(user.Phone))
	put("fn", user.FirstName)
	put("ln", user.LastName)
	put("zp", user.Zip)
	put("ct", user.City)
	put("st", user.State)
	put("country", user.Country)

	return identity
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchingManager re-initializes the pixel with known identity fields so
// every subsequent pixel event carries them. It caches the last applied
// identity set and skips redundant re-inits. State lives on the manager
// itself (one per browser session), never in a package-level variable, so
// tests can reset it deterministically. One manager is shared by all
// concurrent requests of a session, so the fingerprint is lock-guarded.
type MatchingManager struct {
	pixel pixel.Dispatcher

	mu       sync.Mutex
	last     map[string]string
	lastUsed time.Time
}

func NewMatchingManager(d pixel.Dispatcher) *MatchingManager {
	return &MatchingManager{pixel: d, lastUsed: time.Now()}
}

// Setup applies an identity set. Empty sets and sets identical to the last
// applied one are no-ops.
func (m *MatchingManager) Setup(identity map[string]string) {
	if len(identity) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last != nil && maps.Equal(m.last, identity) {
		return
	}

	m.last = maps.Clone(identity)
	m.pixel.Init(identity)
}

// Clear resets the cached identity and re-initializes the pixel with no
// identity data. Called exactly on sign-out.
func (m *MatchingManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = nil
	m.pixel.Init(nil)
}

func (m *MatchingManager) touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed = time.Now()
}

func (m *MatchingManager) seen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUsed
}
