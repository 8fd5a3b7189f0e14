package vault_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-password-vault/internal/application/auth"
	"github.com/go-password-vault/internal/application/vault"
	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/domain"
	"github.com/go-password-vault/internal/infrastructure/memstore"
	"github.com/go-password-vault/internal/pkg/keyring"
	"github.com/go-password-vault/internal/pkg/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardMailer struct{}

func (discardMailer) SendEmail(string, string, string) error { return nil }

func TestRegisterLoginAddAndDelete(t *testing.T) {
	ctx := context.Background()
	db := memstore.New(config.DynamoTables{Users: "users", Credentials: "credentials", OTPs: "otps", Sessions: "sessions"})
	kr, err := keyring.New("scenario-secret", keyring.WithArgon2(1, 8*1024, 1))
	require.NoError(t, err)

	authSvc := auth.NewService(auth.ServiceDeps{
		AccountRepo:    db.Accounts(),
		CredentialRepo: db.Credentials(),
		OTPRepo:        db.OTPs(),
		SessionRepo:    db.Sessions(),
		Mailer:         discardMailer{},
		Keyring:        kr,
		Hasher:         password.NewHasher(4),
		OTPTTL:         10 * time.Minute,
	})
	m := auth.NewManager(authSvc)

	_, err = authSvc.Register(ctx, domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "Secret123!"})
	require.NoError(t, err)
	sess, err := m.Login(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	v, err := vault.NewService(vault.ServiceDeps{
		AccountRepo:    db.Accounts(),
		CredentialRepo: db.Credentials(),
		Keyring:        kr,
	}, sess.UserID)
	require.NoError(t, err)

	_, err = v.AddPassword(ctx, "github.com", "alice-gh", "p@ss", "")
	require.NoError(t, err)

	sites, err := v.GetWebsites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"github.com"}, sites)

	ok, err := v.DeletePassword(ctx, "github.com", "alice-gh")
	require.NoError(t, err)
	assert.True(t, ok)

	sites, err = v.GetWebsites(ctx)
	require.NoError(t, err)
	assert.Empty(t, sites)
}
