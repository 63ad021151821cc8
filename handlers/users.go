package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/service"
)

type UsersHandler struct {
	Accounts *service.AccountService
}

type blockRequest struct {
	IsActive *bool `json:"isActive"`
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Accounts.ListUsers(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

// Block sets a user's active flag. Connected clients are told through the socket.
func (h *UsersHandler) Block(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.IsActive == nil {
		WriteError(w, r, apperr.Invalid("isActive is required"))
		return
	}
	user, err := h.Accounts.SetActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// ToggleStatus flips a user between active and blocked.
func (h *UsersHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	user, err := h.Accounts.ToggleActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
