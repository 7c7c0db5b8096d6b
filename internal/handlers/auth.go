package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/findosh/agriconnect/internal/middleware"
	"github.com/findosh/agriconnect/internal/models"
	"github.com/findosh/agriconnect/internal/services/auth"
)

const minPasswordLength = 8

// Login handles login requests
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.LoginCredentials
	if err := decode(r, &creds); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		h.jsonError(w, "Email and password required", http.StatusBadRequest)
		return
	}

	result, err := h.sessions.Login(r.Context(), creds)
	if err != nil {
		h.authError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Register handles registration requests
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var data models.RegisterData
	if err := decode(r, &data); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	data.Name = strings.TrimSpace(data.Name)
	data.Email = strings.TrimSpace(data.Email)

	// Validation
	if data.Name == "" || data.Email == "" || data.Password == "" {
		h.jsonError(w, "All fields required", http.StatusBadRequest)
		return
	}
	if len(data.Password) < minPasswordLength {
		h.jsonError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}
	switch data.FarmType {
	case "", models.FarmChickens, models.FarmCows, models.FarmVegetables, models.FarmMixed:
	default:
		h.jsonError(w, "Unknown farm type", http.StatusBadRequest)
		return
	}

	result, err := h.sessions.Register(r.Context(), data)
	if err != nil {
		h.authError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// Logout ends the session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Refresh exchanges the stored refresh token for a new pair
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.sessions.RefreshAccessToken(r.Context())
	if err != nil {
		h.authError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tokens)
}

// SessionStatus reports the session and token state
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := struct {
		Authenticated bool       `json:"authenticated"`
		TokenExpired  bool       `json:"tokenExpired"`
		NeedsRefresh  bool       `json:"needsRefresh"`
		ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	}{
		Authenticated: h.sessions.IsAuthenticated(ctx),
		TokenExpired:  h.sessions.IsTokenExpired(ctx),
		NeedsRefresh:  h.sessions.NeedsRefresh(ctx),
	}
	if expiry, ok := h.sessions.TokenExpiry(ctx); ok {
		status.ExpiresAt = &expiry
	}
	h.writeJSON(w, http.StatusOK, status)
}

// Me returns the signed-in user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		h.jsonError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// UpdateProfile merges profile changes into the signed-in user
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var updates models.ProfileUpdate
	if err := decode(r, &updates); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.sessions.UpdateProfile(r.Context(), updates)
	if err != nil {
		h.authError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// ChangePassword changes the signed-in user's password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decode(r, &req); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		h.jsonError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		h.authError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset asks for a reset link
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.sessions.RequestPasswordReset(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		h.authError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// VerifyEmail confirms an email verification token
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decode(r, &req); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.sessions.VerifyEmail(r.Context(), req.Token); err != nil {
		h.authError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authError maps session errors to HTTP statuses
func (h *Handler) authError(w http.ResponseWriter, err error) {
	var be *auth.BackendError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.jsonError(w, "Invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrNotLoggedIn), errors.Is(err, auth.ErrNoRefreshToken):
		h.jsonError(w, err.Error(), http.StatusUnauthorized)
	case errors.As(err, &be):
		h.jsonError(w, be.Message, http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.jsonError(w, "Request cancelled", http.StatusGatewayTimeout)
	default:
		h.jsonError(w, "Internal error", http.StatusInternalServerError)
	}
}
