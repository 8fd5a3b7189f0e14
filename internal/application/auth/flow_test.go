package auth

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-password-vault/internal/config"
	"github.com/go-password-vault/internal/domain"
	"github.com/go-password-vault/internal/infrastructure/memstore"
	"github.com/go-password-vault/internal/pkg/keyring"
	"github.com/go-password-vault/internal/pkg/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// inbox records every message and exposes the last code sent to an address.
type inbox struct {
	mu   sync.Mutex
	last map[string]string
}

func (b *inbox) SendEmail(to, _, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		b.last = map[string]string{}
	}
	b.last[to] = codePattern.FindString(body)
	return nil
}

func (b *inbox) code(t *testing.T, to string) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.last[to]
	require.NotEmpty(t, c, "no code sent to %s", to)
	return c
}

type harness struct {
	svc   Service
	db    *memstore.DB
	inbox *inbox
	now   time.Time
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func newHarness(t *testing.T, requireVerification bool) *harness {
	t.Helper()
	kr, err := keyring.New("test-secret", keyring.WithArgon2(1, 8*1024, 1))
	require.NoError(t, err)
	h := &harness{
		db:    memstore.New(config.DynamoTables{Users: "users", Credentials: "credentials", OTPs: "otps", Sessions: "sessions"}),
		inbox: &inbox{},
		now:   fixedNow,
	}
	h.svc = NewService(ServiceDeps{
		AccountRepo:              h.db.Accounts(),
		CredentialRepo:           h.db.Credentials(),
		OTPRepo:                  h.db.OTPs(),
		SessionRepo:              h.db.Sessions(),
		Mailer:                   h.inbox,
		Keyring:                  kr,
		Hasher:                   password.NewHasher(4),
		RequireEmailVerification: requireVerification,
		OTPTTL:                   10 * time.Minute,
		OTPResendCooldown:        30 * time.Second,
		RefreshTokenDur:          time.Hour,
		Now:                      func() time.Time { return h.now },
	})
	return h
}

func TestRegister_WithoutVerificationPolicy(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	a, err := h.svc.Register(ctx, domain.RegisterRequest{Username: "Alice", Email: "Alice@Example.com", Password: "Secret1!"})
	require.NoError(t, err)

	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, "alice@example.com", a.Email)
	assert.Equal(t, domain.RoleUser, a.Role)
	assert.True(t, a.EmailVerified)
	assert.Empty(t, a.PasswordHash)
	assert.Nil(t, a.EncryptionKey)

	stored, err := h.db.Accounts().Get(ctx, a.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, "Secret1!", stored.PasswordHash)
	assert.Len(t, stored.EncryptionKey, 48)
	assert.NotEmpty(t, stored.IV)
	assert.NotEmpty(t, stored.KeySalt)
}

func TestRegister_DuplicatesAreCaseInsensitive(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = h.svc.Register(ctx, domain.RegisterRequest{Username: "ALICE", Email: "other@example.com", Password: "pw"})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, err = h.svc.Register(ctx, domain.RegisterRequest{Username: "bob", Email: "ALICE@example.com", Password: "pw"})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	exists, err := h.svc.CheckUserExists(ctx, "Alice", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = h.svc.CheckUserExists(ctx, "carol", "carol@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRegister_MissingFields(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.svc.Register(context.Background(), domain.RegisterRequest{Username: "alice", Email: "alice@example.com"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	assert.Contains(t, err.Error(), "password is required")
}

func TestRegistrationOTP_VerifiesAndIsSingleUse(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	require.NoError(t, h.svc.RequestRegistrationOTP(ctx, "alice", "alice@example.com"))
	code := h.inbox.code(t, "alice@example.com")

	a, err := h.svc.Register(ctx, domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", OTP: code})
	require.NoError(t, err)
	assert.True(t, a.EmailVerified)

	res, err := h.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, a.UserID, res.Session.UserID)
	assert.Empty(t, res.Bearer)

	_, err = h.svc.Register(ctx, domain.RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "pw", OTP: code})
	require.Error(t, err)
}

func TestRegister_WrongOTPCreatesNothing(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	require.NoError(t, h.svc.RequestRegistrationOTP(ctx, "alice", "alice@example.com"))
	code := h.inbox.code(t, "alice@example.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, err := h.svc.Register(ctx, domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", OTP: wrong})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	exists, err := h.svc.CheckUserExists(ctx, "alice", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVerifyEmail_AfterRegistration(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, domain.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, "bob", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not verified")

	require.NoError(t, h.svc.RequestPasswordReset(ctx, "bob"))
	// A reset code does not verify an email.
	assert.Error(t, h.svc.VerifyEmail(ctx, "bob@example.com", h.inbox.code(t, "bob@example.com")))

	// Registration codes are only issued for unused identifiers, so seed one directly.
	require.NoError(t, h.db.OTPs().Put(ctx, &domain.OTP{
		Email: "bob@example.com", Type: domain.OTPVerification, Code: "424242",
		ExpiresAt: h.now.Add(time.Minute).Unix(), LastSent: h.now.Unix(),
	}))
	require.NoError(t, h.svc.VerifyEmail(ctx, "BOB@example.com", "424242"))

	_, err = h.svc.Login(ctx, "bob", "pw")
	assert.NoError(t, err)
}

func TestOTP_ExpiresAfterTTL(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	require.NoError(t, h.svc.RequestRegistrationOTP(ctx, "alice", "alice@example.com"))
	code := h.inbox.code(t, "alice@example.com")
	h.advance(11 * time.Minute)

	_, err := h.svc.Register(ctx, domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", OTP: code})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestOTP_ResendAfterCooldownReplacesCode(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	require.NoError(t, h.svc.RequestRegistrationOTP(ctx, "alice", "alice@example.com"))
	err := h.svc.RequestRegistrationOTP(ctx, "alice", "alice@example.com")
	assert.True(t, errors.Is(err, domain.ErrTooManyRequests))

	h.advance(31 * time.Second)
	require.NoError(t, h.svc.RequestRegistrationOTP(ctx, "alice", "alice@example.com"))

	o, err := h.db.OTPs().Get(ctx, "alice@example.com", domain.OTPVerification)
	require.NoError(t, err)
	assert.Equal(t, h.now.Unix(), o.LastSent)
	assert.Equal(t, h.inbox.code(t, "alice@example.com"), o.Code)
}

func TestResetPassword_RevokesSessions(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "old"})
	require.NoError(t, err)
	res, err := h.svc.Login(ctx, "alice", "old")
	require.NoError(t, err)

	require.NoError(t, h.svc.RequestPasswordReset(ctx, "Alice"))
	code := h.inbox.code(t, "alice@example.com")
	require.NoError(t, h.svc.ResetPassword(ctx, "alice@example.com", code, "new"))

	_, err = h.svc.CurrentSession(ctx, res.Session.SessionID)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = h.svc.Login(ctx, "alice", "old")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	_, err = h.svc.Login(ctx, "alice", "new")
	assert.NoError(t, err)

	// The code was consumed.
	assert.Error(t, h.svc.ResetPassword(ctx, "alice@example.com", code, "again"))
}

func TestResetPassword_UnknownEmailLooksLikeBadCode(t *testing.T) {
	h := newHarness(t, false)

	err := h.svc.ResetPassword(context.Background(), "nobody@example.com", "123456", "new")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestRefresh_RotatesToken(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	res, err := h.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	next, err := h.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, next.RefreshToken)
	assert.Equal(t, res.Session.SessionID, next.Session.SessionID)

	_, err = h.svc.Refresh(ctx, res.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestDeleteAccount_Cascades(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	a, err := h.svc.Register(ctx, domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	res, err := h.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	require.NoError(t, h.db.Credentials().Put(ctx, &domain.Credential{UserID: a.UserID, CredentialID: "c1", Website: "gmail.com"}))

	err = h.svc.DeleteAccount(ctx, res.Session, "wrong")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	require.NoError(t, h.svc.DeleteAccount(ctx, res.Session, "pw"))

	creds, err := h.db.Credentials().ListByUser(ctx, a.UserID)
	require.NoError(t, err)
	assert.Empty(t, creds)
	_, err = h.svc.CurrentSession(ctx, res.Session.SessionID)
	assert.Error(t, err)
	_, err = h.svc.Login(ctx, "alice", "pw")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}
