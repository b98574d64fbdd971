package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	sessionCookie = "sid"
	sessionMaxAge = 30 * 24 * time.Hour

	SessionContextKey contextKey = "session"
)

// EnsureSession guarantees every request carries a storefront session ID.
// The ID keys the session's cart and its pixel instruction queue.
func EnsureSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
			sid = cookie.Value
		} else {
			sid = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(sessionMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID returns the session ID placed by EnsureSession, or "".
func GetSessionID(ctx context.Context) string {
	sid, _ := ctx.Value(SessionContextKey).(string)
	return sid
}
