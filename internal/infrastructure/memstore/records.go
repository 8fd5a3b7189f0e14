package memstore

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"time"

	"github.com/go-password-vault/internal/domain"
)

// CredentialRepo mirrors dynamo.CredentialRepo.
type CredentialRepo struct{ db *DB }

func (r *CredentialRepo) Put(_ context.Context, c *domain.Credential) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	byID, ok := r.db.credentials[c.UserID]
	if !ok {
		byID = map[string]domain.Credential{}
		r.db.credentials[c.UserID] = byID
	}
	byID[c.CredentialID] = copyCredential(*c)
	return nil
}

// ListByUser returns credentials ordered by credential_id, like a DynamoDB partition query.
func (r *CredentialRepo) ListByUser(_ context.Context, userID string) ([]domain.Credential, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	byID := r.db.credentials[userID]
	out := make([]domain.Credential, 0, len(byID))
	for _, c := range byID {
		out = append(out, copyCredential(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CredentialID < out[j].CredentialID })
	return out, nil
}

func (r *CredentialRepo) UpdateEntry(_ context.Context, userID, credentialID string, index int, oldUsername string, e domain.LoginEntry) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.credentials[userID][credentialID]
	if !ok || index < 0 || index >= len(c.LoginEntries) || c.LoginEntries[index].Username != oldUsername {
		return false, nil
	}
	c = copyCredential(c)
	c.LoginEntries[index] = e
	c.UpdatedAt = time.Now().UTC()
	r.db.credentials[userID][credentialID] = copyCredential(c)
	return true, nil
}

func (r *CredentialRepo) Delete(_ context.Context, userID, credentialID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.credentials[userID][credentialID]; !ok {
		return false, nil
	}
	delete(r.db.credentials[userID], credentialID)
	return true, nil
}

func (r *CredentialRepo) DeleteAllByUser(_ context.Context, userID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := len(r.db.credentials[userID])
	delete(r.db.credentials, userID)
	return n, nil
}

// OTPRepo mirrors dynamo.OTPRepo.
type OTPRepo struct{ db *DB }

func otpKey(email, otpType string) string { return email + "|" + otpType }

func (r *OTPRepo) Put(_ context.Context, o *domain.OTP) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.otps[otpKey(o.Email, o.Type)] = *o
	return nil
}

func (r *OTPRepo) Get(_ context.Context, email, otpType string) (*domain.OTP, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	o, ok := r.db.otps[otpKey(email, otpType)]
	if !ok {
		return nil, notFound("otp")
	}
	return &o, nil
}

func (r *OTPRepo) Consume(_ context.Context, email, otpType, code string, nowUnix int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := otpKey(email, otpType)
	o, ok := r.db.otps[k]
	if !ok || o.ExpiresAt <= nowUnix {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(o.Code), []byte(code)) != 1 {
		return false, nil
	}
	delete(r.db.otps, k)
	return true, nil
}

func (r *OTPRepo) Delete(_ context.Context, email, otpType string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.otps, otpKey(email, otpType))
	return nil
}

// SessionRepo mirrors dynamo.SessionRepo.
type SessionRepo struct{ db *DB }

func (r *SessionRepo) Put(_ context.Context, s *domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.sessions[s.SessionID] = *s
	return nil
}

func (r *SessionRepo) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.sessions[sessionID]
	if !ok {
		return nil, notFound("session")
	}
	return &s, nil
}

func (r *SessionRepo) GetByRefreshToken(_ context.Context, token string) (*domain.Session, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, s := range r.db.sessions {
		if s.RefreshToken == token {
			if !s.Enable {
				return nil, fmt.Errorf("session disabled: %w", domain.ErrUnauthorized)
			}
			return &s, nil
		}
	}
	return nil, notFound("session")
}

func (r *SessionRepo) RotateRefreshToken(_ context.Context, sessionID, newToken string, newExpiry int64) error {
	return r.mutate(sessionID, func(s *domain.Session) {
		s.RefreshToken = newToken
		s.RefreshExpiresAt = newExpiry
	})
}

func (r *SessionRepo) Disable(_ context.Context, sessionID string) error {
	return r.mutate(sessionID, func(s *domain.Session) { s.Enable = false })
}

func (r *SessionRepo) DisableByUser(_ context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, s := range r.db.sessions {
		if s.UserID == userID {
			s.Enable = false
			s.UpdatedAt = time.Now().UTC()
			r.db.sessions[id] = s
		}
	}
	return nil
}

func (r *SessionRepo) mutate(sessionID string, fn func(*domain.Session)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[sessionID]
	if !ok {
		return notFound("session")
	}
	fn(&s)
	s.UpdatedAt = time.Now().UTC()
	r.db.sessions[sessionID] = s
	return nil
}
