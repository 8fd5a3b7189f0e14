package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-password-vault/internal/application/vault"
	"github.com/go-password-vault/internal/domain"
	"github.com/go-password-vault/internal/transport/http/middleware"
)

// VaultProvider returns the vault service bound to userID.
type VaultProvider func(userID string) (vault.Service, error)

// CredentialHandler exposes the caller's saved website logins.
type CredentialHandler struct {
	vaults VaultProvider
}

func NewCredentialHandler(vaults VaultProvider) *CredentialHandler {
	return &CredentialHandler{vaults: vaults}
}

// vaultFor resolves the caller's vault, writing the error response when it cannot.
func vaultFor(w http.ResponseWriter, r *http.Request, vaults VaultProvider) (vault.Service, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	svc, err := vaults(sess.UserID)
	if err != nil {
		httpError(w, err)
		return nil, false
	}
	return svc, true
}

// List returns every credential, or those matching ?q= (substring search)
// or ?website= (exact website).
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	var (
		creds []domain.Credential
		err   error
	)
	switch q := r.URL.Query(); {
	case q.Get("q") != "":
		creds, err = svc.SearchPasswords(r.Context(), q.Get("q"))
	case q.Get("website") != "":
		creds, err = svc.GetPasswordsByCategory(r.Context(), q.Get("website"))
	default:
		creds, err = svc.ListPasswords(r.Context())
	}
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DataEnvelope{Data: creds})
}

func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	var req domain.AddCredentialRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := svc.AddPassword(r.Context(), req.Website, req.Username, req.Password, req.Notes)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DataEnvelope{Data: c})
}

func (h *CredentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	var req domain.UpdateCredentialRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := svc.UpdatePassword(r.Context(), req.Website, req.OldUsername, req.NewUsername, req.NewPassword, req.Notes)
	if err != nil {
		httpError(w, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "no matching login")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "login updated"})
}

func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	var req domain.DeleteCredentialRequest
	if !decode(w, r, &req) {
		return
	}
	deleted, err := svc.DeletePassword(r.Context(), req.Website, req.Username)
	if err != nil {
		httpError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "no matching login")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "login deleted"})
}

func (h *CredentialHandler) Websites(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	sites, err := svc.GetWebsites(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DataEnvelope{Data: sites})
}

func (h *CredentialHandler) ByWebsite(w http.ResponseWriter, r *http.Request) {
	svc, ok := vaultFor(w, r, h.vaults)
	if !ok {
		return
	}
	entries, err := svc.GetPasswordsByWebsite(r.Context(), chi.URLParam(r, "website"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DataEnvelope{Data: entries})
}
