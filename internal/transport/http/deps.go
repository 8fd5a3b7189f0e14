package http

import (
	"context"

	"github.com/go-password-vault/internal/domain"
)

// AccountRepository is the minimal interface the router requires from an account store.
type AccountRepository interface {
	Put(ctx context.Context, a *domain.Account) error
	Get(ctx context.Context, userID string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID string) error
	ScanAll(ctx context.Context) ([]domain.Account, error)
	AppendData(ctx context.Context, userID string, rec domain.DataRecord) error
	UpdateData(ctx context.Context, userID, recordID, info string) (bool, error)
	RemoveData(ctx context.Context, userID, recordID string) (bool, error)
}

// CredentialRepository is the minimal interface the router requires from a credential store.
type CredentialRepository interface {
	Put(ctx context.Context, c *domain.Credential) error
	ListByUser(ctx context.Context, userID string) ([]domain.Credential, error)
	UpdateEntry(ctx context.Context, userID, credentialID string, index int, oldUsername string, e domain.LoginEntry) (bool, error)
	Delete(ctx context.Context, userID, credentialID string) (bool, error)
	DeleteAllByUser(ctx context.Context, userID string) (int, error)
}

// OTPRepository is the minimal interface the router requires from an OTP store.
type OTPRepository interface {
	Put(ctx context.Context, o *domain.OTP) error
	Get(ctx context.Context, email, otpType string) (*domain.OTP, error)
	Consume(ctx context.Context, email, otpType, code string, nowUnix int64) (bool, error)
	Delete(ctx context.Context, email, otpType string) error
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
	DisableByUser(ctx context.Context, userID string) error
}

// TableAdmin lists, exports and drops the service's own tables.
type TableAdmin interface {
	ListTables(ctx context.Context) ([]string, error)
	ExportTable(ctx context.Context, name string) ([]map[string]interface{}, error)
	DropTable(ctx context.Context, name string) error
}

// Archiver stores a snapshot of a collection before it is dropped.
type Archiver interface {
	Archive(ctx context.Context, collection string, rows []map[string]interface{}) (string, error)
}
