package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/writeups/service"
)

// CategoriesHandler serves categories and the subcategories nested under them.
type CategoriesHandler struct {
	Content *service.ContentService
}

func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Content.ListCategories(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, categories)
}

func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	category, err := h.Content.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, category)
}

func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CategoryInput
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	category, err := h.Content.CreateCategory(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, category)
}

func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.CategoryPatch
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	category, err := h.Content.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, category)
}

// Delete removes the category with its subcategories and writeups.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	report, err := h.Content.DeleteCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Category deleted successfully",
		"deleted": report,
	})
}

func (h *CategoriesHandler) Subcategories(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Content.ListSubcategories(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, subs)
}

func (h *CategoriesHandler) CreateSubcategory(w http.ResponseWriter, r *http.Request) {
	var req service.SubcategoryInput
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	sub, err := h.Content.CreateSubcategory(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, sub)
}
