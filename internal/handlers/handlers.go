// Package handlers provides HTTP request handlers
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/findosh/agriconnect/internal/config"
	"github.com/findosh/agriconnect/internal/middleware"
	"github.com/findosh/agriconnect/internal/services/auth"
	"github.com/findosh/agriconnect/internal/services/experiments"
	"github.com/findosh/agriconnect/internal/services/locale"
	"go.uber.org/zap"
)

// Handler contains all HTTP handlers and dependencies
type Handler struct {
	cfg         *config.Config
	sessions    *auth.Manager
	experiments *experiments.Service
	language    *locale.Preference
	logger      *zap.Logger
}

// New creates a new handler with all dependencies
func New(
	cfg *config.Config,
	sessions *auth.Manager,
	experimentService *experiments.Service,
	language *locale.Preference,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:         cfg,
		sessions:    sessions,
		experiments: experimentService,
		language:    language,
		logger:      logger,
	}
}

// Routes registers every endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	requireSession := middleware.NewAuth(h.sessions).RequireSession
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health)

	// Session
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("POST /api/auth/refresh", h.Refresh)
	mux.HandleFunc("GET /api/auth/status", h.SessionStatus)
	mux.HandleFunc("POST /api/auth/password-reset", h.RequestPasswordReset)
	mux.HandleFunc("POST /api/auth/verify-email", h.VerifyEmail)
	mux.Handle("GET /api/auth/me", requireSession(http.HandlerFunc(h.Me)))
	mux.Handle("POST /api/auth/profile", requireSession(http.HandlerFunc(h.UpdateProfile)))
	mux.Handle("POST /api/auth/password", requireSession(http.HandlerFunc(h.ChangePassword)))

	// Experiments
	mux.HandleFunc("GET /api/experiments", h.ActiveExperiments)
	mux.HandleFunc("GET /api/experiments/summary", h.ExperimentSummary)
	mux.HandleFunc("GET /api/experiments/{id}/variant", h.ExperimentVariant)
	mux.HandleFunc("GET /api/experiments/{id}/config", h.ExperimentConfig)
	mux.HandleFunc("POST /api/experiments/{id}/events", h.RecordExperimentEvent)
	mux.HandleFunc("GET /api/experiments/{id}/results", h.ExperimentResults)

	// Locale
	mux.HandleFunc("GET /api/locale", h.GetLocale)
	mux.HandleFunc("PUT /api/locale", h.SetLocale)

	return mux
}

// Health reports liveness and the running environment
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": h.cfg.Environment,
		"store":       h.cfg.StoreDriver,
	})
}

// writeJSON writes v as a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// jsonError writes a JSON error response
func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON request body into v
func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
