package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-password-vault/internal/domain"
	pkgtoken "github.com/go-password-vault/internal/pkg/token"
)

const otpLength = 6

var errInvalidCode = fmt.Errorf("invalid or expired code: %w", domain.ErrUnauthorized)

// issueOTP replaces any pending code of the same type for email and mails it.
// The body format receives the code and the TTL. A code that could not be
// delivered is removed so it can never be redeemed.
func (s *service) issueOTP(ctx context.Context, email, otpType, subject, bodyFormat string) error {
	issued := s.now()
	existing, err := s.otps.Get(ctx, email, otpType)
	switch {
	case err == nil:
		if wait := time.Unix(existing.LastSent, 0).Add(s.otpCooldown).Sub(issued); wait > 0 {
			return fmt.Errorf("code already sent, retry in %ds: %w", int(wait.Seconds())+1, domain.ErrTooManyRequests)
		}
	case !isNotFound(err):
		return err
	}

	code, err := pkgtoken.Random(otpLength, pkgtoken.Digits)
	if err != nil {
		return err
	}
	o := &domain.OTP{
		Email:     email,
		Type:      otpType,
		Code:      code,
		ExpiresAt: issued.Add(s.otpTTL).Unix(),
		LastSent:  issued.Unix(),
	}
	if err := s.otps.Put(ctx, o); err != nil {
		return err
	}
	if err := s.mailer.SendEmail(email, subject, fmt.Sprintf(bodyFormat, code, s.otpTTL)); err != nil {
		if derr := s.otps.Delete(ctx, email, otpType); derr != nil {
			slog.Warn("failed to delete undelivered OTP", "type", otpType, "err", derr)
		}
		return fmt.Errorf("send code: %v: %w", err, domain.ErrUnavailable)
	}
	slog.Info("OTP sent", "type", otpType)
	return nil
}

// consumeOTP redeems a code exactly once. Wrong, expired and missing codes are
// indistinguishable to the caller.
func (s *service) consumeOTP(ctx context.Context, email, otpType, code string) error {
	if code == "" {
		return errInvalidCode
	}
	ok, err := s.otps.Consume(ctx, email, otpType, code, s.now().Unix())
	if err != nil {
		return err
	}
	if !ok {
		return errInvalidCode
	}
	return nil
}
