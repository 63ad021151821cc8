package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/service"
)

type SubcategoriesHandler struct {
	Content *service.ContentService
}

type subcategoryRequest struct {
	service.SubcategoryInput
	Category string `json:"category"`
}

// List returns every subcategory, or those of ?category=<id>.
func (h *SubcategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Content.ListSubcategories(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, subs)
}

func (h *SubcategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Content.GetSubcategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sub)
}

func (h *SubcategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req subcategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Category == "" {
		WriteError(w, r, apperr.Invalid("category is required"))
		return
	}
	sub, err := h.Content.CreateSubcategory(r.Context(), req.Category, req.SubcategoryInput)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, sub)
}

func (h *SubcategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.CategoryPatch
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	sub, err := h.Content.UpdateSubcategory(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sub)
}

func (h *SubcategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	report, err := h.Content.DeleteSubcategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Subcategory deleted successfully",
		"deleted": report,
	})
}
