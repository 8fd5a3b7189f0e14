package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-password-vault/internal/application/auth"
	"github.com/go-password-vault/internal/domain"
)

// PasswordRecoveryHandler handles the reset code flow.
type PasswordRecoveryHandler struct {
	svc auth.Service
}

func NewPasswordRecoveryHandler(svc auth.Service) *PasswordRecoveryHandler {
	return &PasswordRecoveryHandler{svc: svc}
}

type recoveryRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type resetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

const recoveryAccepted = "if the account exists, a reset code was sent"

func (h *PasswordRecoveryHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "request":
		var req recoveryRequest
		if !decode(w, r, &req) {
			return
		}
		// Every outcome that depends on the account existing gets the same answer.
		if err := h.svc.RequestPasswordReset(r.Context(), req.Identifier); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrTooManyRequests):
			case errors.Is(err, domain.ErrUnavailable):
				slog.Error("password reset request failed", "err", err)
			default:
				httpError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: recoveryAccepted})
	case "reset":
		var req resetRequest
		if !decode(w, r, &req) {
			return
		}
		if err := h.svc.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
