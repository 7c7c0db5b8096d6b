package handlers

import (
	"net/http"

	"github.com/findosh/agriconnect/internal/models"
)

type experimentView struct {
	models.Experiment
	Status models.ExperimentStatus `json:"status"`
}

// ActiveExperiments lists active experiments with their derived status
func (h *Handler) ActiveExperiments(w http.ResponseWriter, r *http.Request) {
	active := h.experiments.GetActiveTests()
	views := make([]experimentView, 0, len(active))
	for _, exp := range active {
		views = append(views, experimentView{Experiment: exp, Status: h.experiments.Status(exp)})
	}
	h.writeJSON(w, http.StatusOK, views)
}

// ExperimentSummary returns the dashboard roll-up
func (h *Handler) ExperimentSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.experiments.Summary())
}

// ExperimentVariant returns the user's variant, assigning one if needed
func (h *Handler) ExperimentVariant(w http.ResponseWriter, r *http.Request) {
	experimentID := r.PathValue("id")
	userID := h.userID(r, r.URL.Query().Get("user"))
	if userID == "" {
		h.jsonError(w, "User is required", http.StatusBadRequest)
		return
	}

	variantID, ok := h.experiments.GetVariant(r.Context(), experimentID, userID)
	if !ok {
		h.jsonError(w, "Experiment not found or inactive", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"experimentId": experimentID,
		"userId":       userID,
		"variantId":    variantID,
	})
}

// ExperimentConfig returns the config of the user's variant
func (h *Handler) ExperimentConfig(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r, r.URL.Query().Get("user"))
	if userID == "" {
		h.jsonError(w, "User is required", http.StatusBadRequest)
		return
	}

	cfg, ok := h.experiments.GetVariantConfig(r.Context(), r.PathValue("id"), userID)
	if !ok {
		h.jsonError(w, "Experiment not found or inactive", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// RecordExperimentEvent records an interaction against the user's variant
func (h *Handler) RecordExperimentEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string           `json:"userId"`
		Type     models.EventType `json:"type"`
		Element  string           `json:"element,omitempty"`
		Value    *float64         `json:"value,omitempty"`
		Metadata map[string]any   `json:"metadata,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := h.userID(r, req.UserID)
	if userID == "" {
		h.jsonError(w, "User is required", http.StatusBadRequest)
		return
	}
	if !req.Type.Valid() {
		h.jsonError(w, "Unknown event type", http.StatusBadRequest)
		return
	}

	experimentID := r.PathValue("id")
	if _, ok := h.experiments.Test(experimentID); !ok {
		h.jsonError(w, "Experiment not found", http.StatusNotFound)
		return
	}

	h.experiments.RecordEvent(r.Context(), experimentID, userID, models.Event{
		Type:     req.Type,
		Element:  req.Element,
		Value:    req.Value,
		Metadata: req.Metadata,
	})
	w.WriteHeader(http.StatusAccepted)
}

// ExperimentResults returns per-variant aggregates
func (h *Handler) ExperimentResults(w http.ResponseWriter, r *http.Request) {
	experimentID := r.PathValue("id")
	if _, ok := h.experiments.Test(experimentID); !ok {
		h.jsonError(w, "Experiment not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, h.experiments.GetTestResults(experimentID))
}

// userID prefers an explicit id and falls back to the signed-in user
func (h *Handler) userID(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if user := h.sessions.CurrentUser(r.Context()); user != nil {
		return user.ID
	}
	return ""
}
