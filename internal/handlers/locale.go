package handlers

import (
	"errors"
	"net/http"

	"github.com/findosh/agriconnect/internal/services/locale"
)

type languageOption struct {
	Code locale.Language `json:"code"`
	Name string          `json:"name"`
	RTL  bool            `json:"rtl"`
}

// GetLocale returns the stored language and the supported options
func (h *Handler) GetLocale(w http.ResponseWriter, r *http.Request) {
	current := h.language.Get(r.Context())
	available := locale.Available()
	options := make([]languageOption, 0, len(available))
	for _, lang := range available {
		options = append(options, languageOption{Code: lang, Name: lang.Name(), RTL: lang.RTL()})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"language":  current,
		"rtl":       current.RTL(),
		"available": options,
	})
}

// SetLocale stores the language preference
func (h *Handler) SetLocale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language locale.Language `json:"language"`
	}
	if err := decode(r, &req); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.language.Set(r.Context(), req.Language); err != nil {
		if errors.Is(err, locale.ErrUnsupportedLanguage) {
			h.jsonError(w, "Unsupported language", http.StatusBadRequest)
			return
		}
		h.jsonError(w, "Failed to save language", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"language": req.Language,
		"rtl":      req.Language.RTL(),
	})
}
