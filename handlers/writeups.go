package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/writeups/auth"
	"github.com/kevinaaaquil/writeups/metrics"
	"github.com/kevinaaaquil/writeups/service"
)

type WriteupsHandler struct {
	Content *service.ContentService
}

// List returns published writeups, newest first.
func (h *WriteupsHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, service.WriteupFilter{})
}

func (h *WriteupsHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, service.WriteupFilter{CategorySlug: chi.URLParam(r, "slug")})
}

func (h *WriteupsHandler) BySubcategory(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, service.WriteupFilter{SubcategorySlug: chi.URLParam(r, "slug")})
}

func (h *WriteupsHandler) list(w http.ResponseWriter, r *http.Request, f service.WriteupFilter) {
	writeups, err := h.Content.ListPublished(r.Context(), f)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, writeups)
}

// All includes drafts. Admin only.
func (h *WriteupsHandler) All(w http.ResponseWriter, r *http.Request) {
	writeups, err := h.Content.ListAll(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, writeups)
}

func (h *WriteupsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	writeups, err := h.Content.Recent(r.Context(), service.RecentLimit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, writeups)
}

func (h *WriteupsHandler) Search(w http.ResponseWriter, r *http.Request) {
	writeups, err := h.Content.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, writeups)
}

// Get hides drafts from everyone but admins.
func (h *WriteupsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	writeup, err := h.Content.GetWriteup(r.Context(), chi.URLParam(r, "id"), p.IsAdmin())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, writeup)
}

func (h *WriteupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.WriteupInput
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	writeup, err := h.Content.CreateWriteup(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, writeup)
}

func (h *WriteupsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.WriteupPatch
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	writeup, err := h.Content.UpdateWriteup(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, writeup)
}

func (h *WriteupsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Content.DeleteWriteup(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Writeup deleted successfully"})
}

// Read counts a read by the calling user, at most once per user.
func (h *WriteupsHandler) Read(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.Content.RecordRead(r.Context(), chi.URLParam(r, "id"), p.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	metrics.WriteupReads.WithLabelValues(strconv.FormatBool(res.Counted)).Inc()
	WriteJSON(w, http.StatusOK, res)
}
