package meta

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// PrepareUserData Tests
// ============================================

func TestPrepareUserData_HashesPresentFields(t *testing.T) {
	ud := PrepareUserData(RawUser{
		Email:     "A@B.com",
		Phone:     " +54 911 1234 5678 ",
		FirstName: "Juan",
		LastName:  "Perez",
		City:      "Buenos Aires",
		Zip:       "1425",
		Country:   "AR",
	}, RequestContext{})

	assert.Equal(t, Hash("a@b.com"), ud.Email)
	assert.Equal(t, Hash("+5491112345678"), ud.Phone)
	assert.Equal(t, Hash("juan"), ud.FirstName)
	assert.Equal(t, Hash("perez"), ud.LastName)
	assert.Equal(t, Hash("buenosaires"), ud.City)
	assert.Equal(t, Hash("1425"), ud.Zip)
	assert.Equal(t, Hash("ar"), ud.Country)
	assert.Empty(t, ud.State)

	// Hashed email must look like a SHA-256 hex digest.
	assert.Regexp(t, "^[0-9a-f]{64}$", ud.Email)
}

func TestPrepareUserData_OmitsAbsentFields(t *testing.T) {
	ud := PrepareUserData(RawUser{Email: "a@b.com"}, RequestContext{})

	assert.NotEmpty(t, ud.Email)
	assert.Empty(t, ud.Phone)
	assert.Empty(t, ud.FirstName)
	assert.Empty(t, ud.LastName)
	assert.Empty(t, ud.City)
	assert.Empty(t, ud.Zip)
}

func TestPrepareUserData_ExternalIDPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		user     RawUser
		expected string
	}{
		{"user_id wins", RawUser{UserID: "u-1", ID: "u-2"}, "u-1"},
		{"id as fallback", RawUser{ID: "u-2"}, "u-2"},
		{"neither", RawUser{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ud := PrepareUserData(tt.user, RequestContext{ClientIP: "1.2.3.4", UserAgent: "ua"})
			assert.Equal(t, tt.expected, ud.ExternalID)
		})
	}
}

func TestPrepareUserData_FallbackWhenNoIdentity(t *testing.T) {
	// No email, phone, or ID: the placeholder IP/UA are forced in so the
	// payload still clears the minimum-field requirement.
	ud := PrepareUserData(RawUser{FirstName: "Juan"}, RequestContext{ClientIP: "1.2.3.4", UserAgent: "Mozilla/5.0"})

	assert.Equal(t, "0.0.0.0", ud.ClientIPAddress)
	assert.Equal(t, "Unknown", ud.ClientUserAgent)
}

func TestPrepareUserData_NoFallbackWithIdentity(t *testing.T) {
	ud := PrepareUserData(RawUser{Email: "a@b.com"}, RequestContext{ClientIP: "1.2.3.4", UserAgent: "Mozilla/5.0"})

	assert.Equal(t, "1.2.3.4", ud.ClientIPAddress)
	assert.Equal(t, "Mozilla/5.0", ud.ClientUserAgent)
}

func TestPrepareUserData_CookiesCopiedVerbatim(t *testing.T) {
	ud := PrepareUserData(RawUser{Email: "a@b.com"}, RequestContext{
		FBP: "fb.1.1700000000000.123456789",
		FBC: "fb.1.1700000000000.AbCdEf",
	})

	assert.Equal(t, "fb.1.1700000000000.123456789", ud.FBP)
	assert.Equal(t, "fb.1.1700000000000.AbCdEf", ud.FBC)
}

// ============================================
// RequestContextFrom Tests
// ============================================

func TestRequestContextFrom(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/facebook/track-view", nil)
	r.RemoteAddr = "10.0.0.7:54321"
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.AddCookie(&http.Cookie{Name: "_fbp", Value: "fb.1.1700000000000.123456789"})
	r.AddCookie(&http.Cookie{Name: "_fbc", Value: "fb.1.1700000000000.AbCdEf"})

	rc := RequestContextFrom(r)

	assert.Equal(t, "10.0.0.7", rc.ClientIP)
	assert.Equal(t, "Mozilla/5.0", rc.UserAgent)
	assert.Equal(t, "fb.1.1700000000000.123456789", rc.FBP)
	assert.Equal(t, "fb.1.1700000000000.AbCdEf", rc.FBC)
}

func TestRequestContextFrom_ForwardedFor(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/facebook/track-view", nil)
	r.RemoteAddr = "10.0.0.7:54321"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.7")

	rc := RequestContextFrom(r)

	require.Equal(t, "203.0.113.9", rc.ClientIP)
}
