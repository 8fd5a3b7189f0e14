package domain

import "time"

// Session is the sanitized snapshot of an authenticated account.
// It never carries the password hash or key material.
type Session struct {
	SessionID        string    `json:"id" dynamodbav:"session_id"`
	UserID           string    `json:"user_id" dynamodbav:"user_id"`
	Username         string    `json:"username" dynamodbav:"username"`
	Email            string    `json:"email" dynamodbav:"email"`
	Role             string    `json:"role" dynamodbav:"role"`
	EmailVerified    bool      `json:"email_verified" dynamodbav:"email_verified"`
	Enable           bool      `json:"enable" dynamodbav:"enable"`
	RefreshToken     string    `json:"-" dynamodbav:"refresh_token"`
	RefreshExpiresAt int64     `json:"-" dynamodbav:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time `json:"updated" dynamodbav:"updated_at"`
}

// NewSessionSnapshot copies the public account fields into a session.
func NewSessionSnapshot(a *Account) *Session {
	return &Session{
		UserID:        a.UserID,
		Username:      a.Username,
		Email:         a.Email,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
		Enable:        true,
	}
}
