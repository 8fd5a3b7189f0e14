package auth

import (
	"context"
	"log/slog"

	"github.com/go-password-vault/internal/domain"
)

// PurgeDeps are the stores touched when an account is removed.
type PurgeDeps struct {
	Accounts interface {
		Delete(ctx context.Context, userID string) error
	}
	Credentials credentialStore
	Sessions    interface {
		DisableByUser(ctx context.Context, userID string) error
	}
	OTPs interface {
		Delete(ctx context.Context, email, otpType string) error
	}
}

// PurgeAccount deletes an account and everything owned by it. Credentials go
// first so a failure never leaves entries without an owner. Session and OTP
// cleanup failures are logged, not returned.
func PurgeAccount(ctx context.Context, a *domain.Account, deps PurgeDeps) error {
	n, err := deps.Credentials.DeleteAllByUser(ctx, a.UserID)
	if err != nil {
		return err
	}
	if err := deps.Accounts.Delete(ctx, a.UserID); err != nil {
		return err
	}
	if err := deps.Sessions.DisableByUser(ctx, a.UserID); err != nil {
		slog.Warn("failed to revoke sessions for deleted account", "user_id", a.UserID, "err", err)
	}
	if deps.OTPs != nil {
		for _, t := range []string{domain.OTPVerification, domain.OTPReset} {
			if err := deps.OTPs.Delete(ctx, a.Email, t); err != nil && !isNotFound(err) {
				slog.Warn("failed to delete pending OTP", "user_id", a.UserID, "type", t, "err", err)
			}
		}
	}
	slog.Info("account deleted", "user_id", a.UserID, "credentials", n)
	return nil
}
