package handlers

import (
	"net/http"

	"github.com/kevinaaaquil/writeups/service"
)

type StatsHandler struct {
	Stats   *service.StatsService
	Content *service.ContentService
}

func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Stats.Overview(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, overview)
}

func (h *StatsHandler) UserAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.Stats.UserAnalytics(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, analytics)
}

// Reconcile removes subcategories and writeups whose parents no longer exist.
func (h *StatsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Content.Reconcile(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}
