package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-password-vault/internal/domain"
)

// Manager holds at most one logged-in session for an interactive client.
// It is safe for concurrent use.
type Manager struct {
	svc Service

	mu      sync.Mutex
	current *domain.Session
}

func NewManager(svc Service) *Manager {
	return &Manager{svc: svc}
}

// Auth exposes the underlying service for flows that need no session.
func (m *Manager) Auth() Service { return m.svc }

// Login replaces any current session with a new one.
func (m *Manager) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	res, err := m.svc.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	prev := m.current
	m.current = res.Session
	m.mu.Unlock()

	if prev != nil {
		if err := m.svc.Logout(ctx, prev); err != nil {
			slog.Warn("failed to close previous session", "session_id", prev.SessionID, "err", err)
		}
	}
	return copySession(res.Session), nil
}

// Logout is a no-op when nobody is logged in.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.mu.Unlock()
	return m.svc.Logout(ctx, sess)
}

// CurrentUser returns a snapshot of the current session, or nil.
func (m *Manager) CurrentUser() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySession(m.current)
}

func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	sess, err := m.require()
	if err != nil {
		return err
	}
	return m.svc.ChangePassword(ctx, sess, oldPassword, newPassword)
}

// DeleteAccount removes the logged-in account and clears the session.
func (m *Manager) DeleteAccount(ctx context.Context, password string) error {
	sess, err := m.require()
	if err != nil {
		return err
	}
	if err := m.svc.DeleteAccount(ctx, sess, password); err != nil {
		return err
	}
	m.mu.Lock()
	if m.current != nil && m.current.SessionID == sess.SessionID {
		m.current = nil
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) require() (*domain.Session, error) {
	sess := m.CurrentUser()
	if sess == nil {
		return nil, fmt.Errorf("not logged in: %w", domain.ErrUnauthorized)
	}
	return sess, nil
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
