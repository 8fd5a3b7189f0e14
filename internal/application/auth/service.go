package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-password-vault/internal/domain"
	"github.com/go-password-vault/internal/pkg/id"
	"github.com/go-password-vault/internal/pkg/keyring"
	pkgtoken "github.com/go-password-vault/internal/pkg/token"
	"github.com/go-password-vault/internal/pkg/validate"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldPasswordHash  = "password_hash"
	fieldEmailVerified = "email_verified"
)

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

// LoginResult carries a new or refreshed session. Bearer is empty when no signer is configured.
type LoginResult struct {
	Bearer       string
	RefreshToken string
	Session      *domain.Session
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, sess *domain.Session) error
	CurrentSession(ctx context.Context, sessionID string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	ChangePassword(ctx context.Context, sess *domain.Session, oldPassword, newPassword string) error
	DeleteAccount(ctx context.Context, sess *domain.Session, password string) error
	RequestRegistrationOTP(ctx context.Context, username, email string) error
	VerifyEmail(ctx context.Context, email, code string) error
	RequestPasswordReset(ctx context.Context, identifier string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	CheckUserExists(ctx context.Context, username, email string) (bool, error)
}

type accountStore interface {
	Put(ctx context.Context, a *domain.Account) error
	Get(ctx context.Context, userID string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID string) error
}

type credentialStore interface {
	DeleteAllByUser(ctx context.Context, userID string) (int, error)
}

type otpStore interface {
	Put(ctx context.Context, o *domain.OTP) error
	Get(ctx context.Context, email, otpType string) (*domain.OTP, error)
	Consume(ctx context.Context, email, otpType, code string, nowUnix int64) (bool, error)
	Delete(ctx context.Context, email, otpType string) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
	DisableByUser(ctx context.Context, userID string) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type jwtSigner interface {
	Sign(userID, role, sessionID string) (string, error)
}

type keyIssuer interface {
	NewAccountKey() (keyring.WrappedKey, error)
}

type passwordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type ServiceDeps struct {
	AccountRepo    accountStore
	CredentialRepo credentialStore
	OTPRepo        otpStore
	SessionRepo    sessionStore
	Mailer         mailer
	JWTProvider    jwtSigner // optional
	Keyring        keyIssuer
	Hasher         passwordHasher

	// RequireEmailVerification gates login on a verified email.
	// When false, accounts are verified at creation.
	RequireEmailVerification bool
	OTPTTL                   time.Duration
	OTPResendCooldown        time.Duration
	RefreshTokenDur          time.Duration
	Now                      func() time.Time
}

type service struct {
	accounts    accountStore
	credentials credentialStore
	otps        otpStore
	sessions    sessionStore
	mailer      mailer
	jwtProvider jwtSigner
	keys        keyIssuer
	hasher      passwordHasher

	requireVerification bool
	otpTTL              time.Duration
	otpCooldown         time.Duration
	refreshTokenDur     time.Duration
	now                 func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts:            deps.AccountRepo,
		credentials:         deps.CredentialRepo,
		otps:                deps.OTPRepo,
		sessions:            deps.SessionRepo,
		mailer:              deps.Mailer,
		jwtProvider:         deps.JWTProvider,
		keys:                deps.Keyring,
		hasher:              deps.Hasher,
		requireVerification: deps.RequireEmailVerification,
		otpTTL:              deps.OTPTTL,
		otpCooldown:         deps.OTPResendCooldown,
		refreshTokenDur:     deps.RefreshTokenDur,
		now:                 deps.Now,
	}
	if s.otpTTL <= 0 {
		s.otpTTL = 10 * time.Minute
	}
	if s.refreshTokenDur <= 0 {
		s.refreshTokenDur = 30 * 24 * time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

func badRequest(err error) error { return fmt.Errorf("%v: %w", err, domain.ErrBadRequest) }

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	username, email := normalize(req.Username), normalize(req.Email)
	if err := validate.Required("username", username, "email", email, "password", req.Password); err != nil {
		return nil, badRequest(err)
	}
	if err := validate.Email(email); err != nil {
		return nil, badRequest(err)
	}
	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	verified := !s.requireVerification
	if s.requireVerification && req.OTP != "" {
		if err := s.consumeOTP(ctx, email, domain.OTPVerification, req.OTP); err != nil {
			return nil, err
		}
		verified = true
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	wk, err := s.keys.NewAccountKey()
	if err != nil {
		return nil, err
	}
	created := s.now().UTC()
	a := &domain.Account{
		UserID:        id.New(),
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		Role:          domain.RoleUser,
		EmailVerified: verified,
		EncryptionKey: wk.Ciphertext,
		IV:            wk.Nonce,
		KeySalt:       wk.Salt,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	if err := s.accounts.Put(ctx, a); err != nil {
		return nil, err
	}
	slog.Info("account registered", "user_id", a.UserID, "email_verified", verified)
	return sanitize(a), nil
}

func (s *service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	a, err := s.accounts.GetByUsername(ctx, normalize(username))
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		// Spend comparable time on unknown users.
		_ = s.hasher.Compare(s.dummy(), password)
		return nil, errInvalidCredentials
	}
	if err := s.hasher.Compare(a.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials
	}
	if s.requireVerification && !a.EmailVerified {
		return nil, fmt.Errorf("email not verified: %w", domain.ErrUnauthorized)
	}
	return s.openSession(ctx, a)
}

func (s *service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("timing-equalizer")
	})
	return s.dummyHash
}

func (s *service) openSession(ctx context.Context, a *domain.Account) (*LoginResult, error) {
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	opened := s.now().UTC()
	sess := domain.NewSessionSnapshot(a)
	sess.SessionID = id.New()
	sess.RefreshToken = refreshToken
	sess.RefreshExpiresAt = opened.Add(s.refreshTokenDur).Unix()
	sess.CreatedAt = opened
	sess.UpdatedAt = opened
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := s.sign(a.UserID, a.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Bearer: bearer, RefreshToken: refreshToken, Session: sess}, nil
}

func (s *service) sign(userID, role, sessionID string) (string, error) {
	if s.jwtProvider == nil {
		return "", nil
	}
	return s.jwtProvider.Sign(userID, role, sessionID)
}

// Logout is idempotent: a nil or already-gone session is not an error.
func (s *service) Logout(ctx context.Context, sess *domain.Session) error {
	if sess == nil || sess.SessionID == "" {
		return nil
	}
	if err := s.sessions.Disable(ctx, sess.SessionID); err != nil && !isNotFound(err) {
		return err
	}
	sess.Enable = false
	return nil
}

func (s *service) CurrentSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("session not found: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	return sess, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	sess, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if isNotFound(err) || errors.Is(err, domain.ErrUnauthorized) {
			return nil, fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	current := s.now()
	if sess.RefreshExpiresAt < current.Unix() {
		return nil, fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}
	a, err := s.accounts.Get(ctx, sess.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("account no longer exists: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	newToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	newExpiry := current.Add(s.refreshTokenDur).Unix()
	if err := s.sessions.RotateRefreshToken(ctx, sess.SessionID, newToken, newExpiry); err != nil {
		return nil, err
	}
	bearer, err := s.sign(a.UserID, a.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	sess.RefreshToken, sess.RefreshExpiresAt = newToken, newExpiry
	return &LoginResult{Bearer: bearer, RefreshToken: newToken, Session: sess}, nil
}

func (s *service) ChangePassword(ctx context.Context, sess *domain.Session, oldPassword, newPassword string) error {
	a, err := s.reauthenticate(ctx, sess, oldPassword)
	if err != nil {
		return err
	}
	if err := validate.Required("new password", newPassword); err != nil {
		return badRequest(err)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.accounts.Update(ctx, a.UserID, map[string]interface{}{fieldPasswordHash: hash})
}

// DeleteAccount removes the account together with its credentials, sessions and pending codes.
func (s *service) DeleteAccount(ctx context.Context, sess *domain.Session, password string) error {
	a, err := s.reauthenticate(ctx, sess, password)
	if err != nil {
		return err
	}
	return PurgeAccount(ctx, a, PurgeDeps{
		Accounts:    s.accounts,
		Credentials: s.credentials,
		Sessions:    s.sessions,
		OTPs:        s.otps,
	})
}

// reauthenticate requires a session and re-checks the password against the stored hash.
func (s *service) reauthenticate(ctx context.Context, sess *domain.Session, password string) (*domain.Account, error) {
	if sess == nil || sess.UserID == "" {
		return nil, fmt.Errorf("no active session: %w", domain.ErrUnauthorized)
	}
	a, err := s.accounts.Get(ctx, sess.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("account no longer exists: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := s.hasher.Compare(a.PasswordHash, password); err != nil {
		return nil, fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	return a, nil
}

func (s *service) RequestRegistrationOTP(ctx context.Context, username, email string) error {
	username, email = normalize(username), normalize(email)
	if err := validate.Required("username", username, "email", email); err != nil {
		return badRequest(err)
	}
	if err := validate.Email(email); err != nil {
		return badRequest(err)
	}
	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return err
	}
	return s.issueOTP(ctx, email, domain.OTPVerification,
		"Verify your email",
		"Your verification code is %s. It expires in %s.")
}

func (s *service) VerifyEmail(ctx context.Context, email, code string) error {
	email = normalize(email)
	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.consumeOTP(ctx, email, domain.OTPVerification, code); err != nil {
		return err
	}
	return s.accounts.Update(ctx, a.UserID, map[string]interface{}{fieldEmailVerified: true})
}

// RequestPasswordReset accepts either a username or an email address.
func (s *service) RequestPasswordReset(ctx context.Context, identifier string) error {
	identifier = normalize(identifier)
	if identifier == "" {
		return badRequest(errors.New("username or email is required"))
	}
	var a *domain.Account
	var err error
	if strings.Contains(identifier, "@") {
		a, err = s.accounts.GetByEmail(ctx, identifier)
	} else {
		a, err = s.accounts.GetByUsername(ctx, identifier)
	}
	if err != nil {
		return err
	}
	return s.issueOTP(ctx, a.Email, domain.OTPReset,
		"Password reset code",
		"Your password reset code is %s. It expires in %s.")
}

func (s *service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalize(email)
	if err := validate.Required("email", email, "code", code, "new password", newPassword); err != nil {
		return badRequest(err)
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return errInvalidCode
		}
		return err
	}
	if err := s.consumeOTP(ctx, email, domain.OTPReset, code); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.Update(ctx, a.UserID, map[string]interface{}{fieldPasswordHash: hash}); err != nil {
		return err
	}
	if err := s.sessions.DisableByUser(ctx, a.UserID); err != nil {
		slog.Warn("failed to revoke sessions after password reset", "user_id", a.UserID, "err", err)
	}
	return nil
}

func (s *service) CheckUserExists(ctx context.Context, username, email string) (bool, error) {
	err := s.ensureAvailable(ctx, normalize(username), normalize(email))
	if errors.Is(err, domain.ErrConflict) {
		return true, nil
	}
	return false, err
}

// ensureAvailable fails with ErrConflict when either identifier is taken.
// Empty identifiers are skipped.
func (s *service) ensureAvailable(ctx context.Context, username, email string) error {
	if username != "" {
		if _, err := s.accounts.GetByUsername(ctx, username); err == nil {
			return fmt.Errorf("username already taken: %w", domain.ErrConflict)
		} else if !isNotFound(err) {
			return err
		}
	}
	if email != "" {
		if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		} else if !isNotFound(err) {
			return err
		}
	}
	return nil
}

// sanitize returns a copy without the password hash or key material.
func sanitize(a *domain.Account) *domain.Account {
	out := *a
	out.PasswordHash = ""
	out.EncryptionKey, out.IV, out.KeySalt = nil, nil, nil
	return &out
}
