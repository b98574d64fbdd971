package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/wa-storefront/internal/api/middleware"
	"github.com/example/wa-storefront/internal/auth"
	"github.com/example/wa-storefront/internal/infrastructure/store"
	"github.com/example/wa-storefront/internal/meta"
	"github.com/example/wa-storefront/internal/tracking"
	"github.com/google/uuid"
)

// UserAccounts is the slice of account storage the auth handlers need.
type UserAccounts interface {
	Create(ctx context.Context, u *store.User) error
	GetByEmail(ctx context.Context, email string) (*store.User, error)
	GetByID(ctx context.Context, id string) (*store.User, error)
}

// AuthHandlers handles authentication-related HTTP requests. Sign-in and
// sign-up also feed the tracking side: registration fires a
// CompleteRegistration event and every authenticated session gets its
// enhanced-matching identity set up; sign-out clears it.
type AuthHandlers struct {
	users      UserAccounts
	jwtService *auth.JWTService
	tracker    *tracking.Tracker
}

func NewAuthHandlers(users UserAccounts, jwtService *auth.JWTService, tracker *tracking.Tracker) *AuthHandlers {
	return &AuthHandlers{
		users:      users,
		jwtService: jwtService,
		tracker:    tracker,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	EventID        string `json:"eventId"`
	EventSourceURL string `json:"eventSourceUrl"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message,omitempty"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Register handles user registration
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		respondJSONError(w, "email is required", http.StatusBadRequest)
		return
	}

	if _, err := h.users.GetByEmail(r.Context(), req.Email); err == nil {
		respondJSONError(w, "email already registered", http.StatusConflict)
		return
	} else if !errors.Is(err, store.ErrUserNotFound) {
		log.Printf("[API] Failed to check email: %v", err)
		respondJSONError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) || errors.Is(err, auth.ErrPasswordTooLong) {
			respondJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("[API] Failed to hash password: %v", err)
		respondJSONError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	newUser := &store.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         "customer",
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.Create(r.Context(), newUser); err != nil {
		log.Printf("[API] Failed to create user: %v", err)
		respondJSONError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	h.setAuthCookies(w, newUser.ID, newUser.Email, newUser.Role, r)

	// Fire the registration conversion on both channels. Best-effort; a
	// tracking failure never fails the sign-up.
	h.tracker.TrackRegistration(r.Context(), tracking.Context{
		SessionID: middleware.GetSessionID(r.Context()),
		EventID:   req.EventID,
		SourceURL: req.EventSourceURL,
		User:      rawUser(newUser),
		Request:   meta.RequestContextFrom(r),
	})

	respondJSON(w, http.StatusCreated, AuthResponse{
		User:    userResponse(newUser),
		Message: "Registration successful",
	})
}

// Login handles user login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userModel, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondJSONError(w, "invalid email or password", http.StatusUnauthorized)
			return
		}
		log.Printf("[API] Failed to look up user: %v", err)
		respondJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}

	if !auth.CheckPassword(req.Password, userModel.PasswordHash) {
		respondJSONError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	h.setAuthCookies(w, userModel.ID, userModel.Email, userModel.Role, r)

	// Arm enhanced matching for this session so subsequent pixel events
	// carry the signed-in identity.
	sid := middleware.GetSessionID(r.Context())
	h.tracker.Matching(sid).Setup(tracking.MatchingIdentity(rawUser(userModel)))

	respondJSON(w, http.StatusOK, AuthResponse{
		User:    userResponse(userModel),
		Message: "Login successful",
	})
}

// Logout handles user logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookies(w)

	// Drop the session's matching identity so later events are anonymous.
	h.tracker.ClearMatching(middleware.GetSessionID(r.Context()))

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "no refresh token", http.StatusUnauthorized)
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	userModel, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "user not found", http.StatusUnauthorized)
		return
	}

	h.setAuthCookies(w, userModel.ID, userModel.Email, userModel.Role, r)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Token refreshed",
	})
}

// Me returns the current authenticated user's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userModel, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		respondJSONError(w, "user not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, userResponse(userModel))
}

// Helper methods

func rawUser(u *store.User) meta.RawUser {
	first, last := splitName(u.Name)
	return meta.RawUser{
		ID:        u.ID,
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: first,
		LastName:  last,
	}
}

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, userID, email, role string, r *http.Request) {
	accessToken, accessExpiry, _ := h.jwtService.GenerateAccessToken(userID, email, role)
	refreshToken, refreshExpiry, _ := h.jwtService.GenerateRefreshToken(userID)

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/auth/refresh",
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/auth/refresh",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
