package handlers

import (
	"net/http"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/auth"
	"github.com/kevinaaaquil/writeups/middleware"
	"github.com/kevinaaaquil/writeups/service"
)

type AuthHandler struct {
	Accounts *service.AccountService
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	session, err := h.Accounts.Register(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, session)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	session, err := h.Accounts.Login(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

// Me returns the caller's account, admin or user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, r, apperr.ErrUnauthenticated)
		return
	}
	if p.IsAdmin() {
		h.AdminMe(w, r)
		return
	}
	user, err := h.Accounts.User(r.Context(), p.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	session, err := h.Accounts.AdminLogin(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

// AdminSetup creates an admin. Open while no admin exists, admin-only afterwards.
func (h *AuthHandler) AdminSetup(w http.ResponseWriter, r *http.Request) {
	var req service.AdminSetupInput
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	var caller *auth.Principal
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		caller = &p
	}
	admin, err := h.Accounts.SetupAdmin(r.Context(), caller, req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"admin": admin})
}

func (h *AuthHandler) AdminMe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	admin, err := h.Accounts.Admin(r.Context(), p.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"admin": admin})
}

// Verify confirms that the caller's user token is still good. Blocked users
// never get here; the guard answers 403 for them.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	user, err := h.Accounts.User(r.Context(), p.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "user": user})
}

// Status tells a client whether its account is active. It runs without the
// guard so that blocked users get an answer.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	active, err := h.Accounts.Status(r.Context(), middleware.BearerToken(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"isActive": active})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req service.ChangePasswordInput
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.Accounts.ChangePassword(r.Context(), p.ID, req); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req service.ProfileInput
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	user, err := h.Accounts.UpdateProfile(r.Context(), p.ID, req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
