package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/service"
)

type SettingsHandler struct {
	Settings *service.SettingsService
}

// Public returns the settings a visitor may see.
func (h *SettingsHandler) Public(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Settings.Public())
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Settings.Current())
}

// Update merges the body onto the current settings. Nothing is stored when the
// merged result is invalid.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch json.RawMessage
	if err := decodeJSON(w, r, &patch); err != nil {
		WriteError(w, r, err)
		return
	}
	if len(patch) == 0 {
		WriteError(w, r, apperr.Invalid("settings body is required"))
		return
	}
	settings, err := h.Settings.Update(r.Context(), patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Settings updated successfully",
		"settings": settings,
	})
}
