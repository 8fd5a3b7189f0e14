package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-password-vault/internal/application/admin"
)

// AdminHandler exposes account administration to admin-role callers.
type AdminHandler struct {
	svc admin.Service
}

func NewAdminHandler(svc admin.Service) *AdminHandler { return &AdminHandler{svc: svc} }

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DataEnvelope{Data: users})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetUserData(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DataEnvelope{Data: a})
}

// DeleteUser still requires the target account's password in the body.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.DeleteUser(r.Context(), chi.URLParam(r, "username"), req.Password); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "user deleted"})
}
